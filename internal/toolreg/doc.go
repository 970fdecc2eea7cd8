// Package toolreg keeps executables the user registered by path, outside
// any package repository.
//
// The document lives as tools.yaml in the machine configuration directory:
//
//	schemaVersion: 1
//	tools:
//	  - id: 5f0e6a8e-7a0c-4d6f-9a55-2f0c1b9b7e42
//	    name: blender
//	    version: "4.2"
//	    executable: /opt/blender-4.2/blender
//	    createdAt: 2024-03-01T12:30:00Z
//	    updatedAt: 2024-03-01T12:30:00Z
//
// An executable is registered at most once; paths are compared after
// resolving symlinks. Registered tools reach the package catalog through
// RegisteredPackages, where they rank after every repository package.
//
// A document that cannot be parsed or read is never overwritten: reads
// report the error and mutations fail until the file is fixed or removed.
package toolreg
