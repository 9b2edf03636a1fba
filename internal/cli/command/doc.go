// Package command defines the browserbox-cli commands.
//
// Capture side:
//
//	capture   open a browser, wait for it to close, snapshot and pack
//	pack      pack an existing snapshot directory
//	unpack    extract an archive
//	inspect   show a snapshot's fingerprint descriptor
//	upload    ship an archive to the server, S3 or a shared directory
//	download  fetch an archive by locator
//
// Server side:
//
//	task      run a task against an environment
//	health    check the server
//	pool      show pool occupancy
//
// Local utilities are keygen and config.
package command
