// Package groups persists the scene-group mapping between runs.
//
// Two backends implement Repository:
//
//   - FileStore: a JSON object of group name to ordered scene names,
//     written atomically (temp file + rename). An external edit of the file
//     can be picked up with Watch.
//   - SQLiteRepository: the scene_groups / group_scenes tables, replaced as
//     a whole inside one transaction on every save.
//
// A Syncer connects a Repository to a rotation.GroupStore. Storage failures
// never stop the service: they are reported as config I/O errors and the
// store keeps whatever it holds.
//
// File format:
//
//	{
//	  "Main":   ["Camera", "Slides", "Camera"],
//	  "Breaks": []
//	}
package groups
