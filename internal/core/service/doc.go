// Package service provides the application services of the BrowserBox server.
//
// TaskService runs the dotask admission flow against the pool.
// UploadService is the server half of the chunked archive transport.
package service
