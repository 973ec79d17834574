// Package state manages the per-addon overlay state kept inside each addon
// directory.
//
// Key concepts:
//   - Record: the .addonrc JSON object; its "files" key lists the live-tree
//     paths the addon last projected. Writes merge into the existing object so
//     keys written by other tools survive.
//   - Shadow directories under .overlay/: "pristine" holds the addon's own
//     copy of every projected file, "displaced" holds live files that existed
//     before the addon first projected over them.
//   - RecordStore: interface for loading and merging records.
package state
