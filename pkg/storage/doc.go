// Package storage provides the file sink used when exporting acquired images.
//
// The Manager type writes every payload atomically: data goes to a temporary
// file first and is renamed into place only once fully written, so a failed
// export never leaves a truncated image behind.
//
// Features:
//   - Atomic file writes using temporary files and rename
//   - Filename sanitization for titles and queries coming from the server
//   - Collision handling: existing files are kept and new ones get a -N suffix
//     unless overwriting is enabled
//
// Usage:
//
//	manager, err := storage.NewManager("downloads", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	path, err := manager.Save(reader, "cats-1.jpg")
//	if err != nil {
//	    log.Printf("Failed to save image: %v", err)
//	}
package storage
