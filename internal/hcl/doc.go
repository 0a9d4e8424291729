/*
Package hcl loads descriptor definitions from HCL files.

A definition file may contain these top-level blocks:

	fragment "Arch" {
	  values    = ["x86", "arm"]
	  composite = { any = ["x86", "arm"] }
	}

	fragment_mask "Platform" {
	  allow = [["win64", "linux"]]
	}

	variables {
	  sdk = "/opt/sdk"
	}

	project "zlib" {
	  targets {
	    Platform = ["win64", "linux"]
	    DevEnv   = "make"
	  }

	  configuration {
	    project_path      = "build/[target.DevEnv]"
	    project_file_name = "[project.Name]"
	    output_path       = "out/${target.platform}"
	    source_files      = ["src/zlib.c"]

	    dependency "base" {
	      overrides = { Optimization = "release" }
	    }
	  }

	  configuration {
	    when    = target.platform == "win64"
	    defines = ["WIN32"]
	  }
	}

	solution "all" {
	  targets { ... }
	  configuration {
	    projects = ["zlib"]
	  }
	}

HCL expressions are evaluated once per target with "target" (lower-case
fragment names plus "name"), "project" and "var" in scope. Bracketed
templates such as "[project.Name]" are left for the resolver.
*/
package hcl
