// Package filedoc loads YAML and JSON files into an ordered, mutable tree.
//
// Both formats are read into gopkg.in/yaml.v3 nodes so that mapping keys
// keep the order they have on disk. Callers inspect the tree through Value,
// which reports its Kind explicitly:
//
//	doc, err := filedoc.Load(".multi-tester.yml")
//	if err != nil {
//	    return err
//	}
//	if doc.Shape() == filedoc.KindMapping && doc.Root().Has("config") {
//	    settings := doc.Root().Get("config")
//	    doc.Root().Remove("config")
//	    ...
//	}
//
// Sequences accept decimal index keys ("0", "1", ...) in Has, Get and
// Remove, so a caller can address list items the same way as map entries.
package filedoc
