// Package manifest writes and reads metadata.json, the list of videos produced
// by a conversion run.
//
// The file is a JSON array of {file_path, text, type} records indented with
// four spaces. Output is byte-compatible with Python's json.dump(..., indent=4)
// so downstream loaders see identical files regardless of which converter
// produced them.
package manifest
