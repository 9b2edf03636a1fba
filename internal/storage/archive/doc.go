// Package archive packs a snapshot directory into a single tar.gz file and
// unpacks it again.
//
// Packing is deterministic: entries are written in lexical order with
// normalized timestamps and ownership, so the same tree always produces the
// same archive bytes. Unpacking accepts only directories and regular files
// whose paths stay inside the target directory.
package archive
