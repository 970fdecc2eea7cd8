// Package catalog discovers tool packages in package repository roots.
//
// Each immediate child directory of a root is a candidate. A candidate that
// holds a descriptor (package.yaml, package.yml or package.json) is a
// package; otherwise each of its child directories holding a descriptor is
// one version of a package, following the name/version layout used by Rez
// repositories:
//
//	<root>/
//	  houdini/
//	    20.5.410/package.yaml
//	    21.0.440/package.yaml
//	  blender/package.yaml
//
// A descriptor may name its executable directly or give a resolve hint: a
// text/template (with a restricted sprig function set), a glob relative to
// the package root, or a key of its environment block. Hints are evaluated,
// never executed, and their result must stay inside the package root.
//
// Scanning never fails as a whole. Malformed descriptors, duplicate
// name+version pairs, unreadable directories and cancellation are all
// reported as Diagnostics on the returned Catalog.
//
// Store keeps the latest catalog for concurrent readers and publishes a
// catalog-updated event after each refresh. Watcher turns filesystem
// changes under the roots into debounced ChangeEvents that drive a Store.
package catalog
