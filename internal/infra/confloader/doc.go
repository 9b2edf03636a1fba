// Package confloader loads layered configuration with koanf.
//
// Sources, lowest priority first:
//
//  1. Values already present in the target struct (defaults)
//  2. A YAML file
//  3. Environment variables with the BROWSERBOX_ prefix, where a double
//     underscore nests: BROWSERBOX_POOL__MAX_CONCURRENT sets pool.max_concurrent
//  4. An override map, usually built from command-line flags
//
// Watcher reports edits to the configuration file so callers can Reload.
package confloader
