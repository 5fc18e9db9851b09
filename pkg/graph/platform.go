package graph

import "runtime"

// Platform describes the host properties that influence generated file
// names. It is evaluated once when a graph is built and never re-evaluated
// mid-build.
type Platform struct {
	OS        string
	ObjSuffix string
	ExeSuffix string
}

// HostPlatform returns the descriptor for the machine we're running on.
func HostPlatform() Platform {
	p := Platform{
		OS:        runtime.GOOS,
		ObjSuffix: ".o",
	}

	if runtime.GOOS == "windows" {
		p.ObjSuffix = ".obj"
		p.ExeSuffix = ".exe"
	}

	return p
}
