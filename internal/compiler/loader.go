package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/reprove/internal/instrument"
)

// LoadResult contains the modules loaded from a directory.
type LoadResult struct {
	Modules   []instrument.Module
	CUEValue  cue.Value // raw CUE value for additional processing
	FileCount int       // number of CUE files found
}

// LoadModules loads and compiles all module definitions from a directory
// of CUE files. Modules are declared under the top-level "module" struct:
//
//	module: MyMod: {
//		f: {body: {call: "Helpers.g", args: [{lit: 1}]}}
//	}
//
// Compile errors are collected per module; modules that compile cleanly are
// still returned alongside the errors.
func LoadModules(dir string) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{fmt.Errorf("modules directory not found: %s", dir)}
	}
	if err != nil {
		return nil, []error{fmt.Errorf("error accessing modules directory: %w", err)}
	}
	if !info.IsDir() {
		return nil, []error{fmt.Errorf("not a directory: %s", dir)}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("error scanning directory: %w", err)}
	}
	if len(cueFiles) == 0 {
		return nil, []error{fmt.Errorf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return nil, []error{fmt.Errorf("no CUE instances loaded")}
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{fmt.Errorf("loading CUE files: %w", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{fmt.Errorf("building CUE value: %w", formatCUEError(err))}
	}

	result := &LoadResult{
		CUEValue:  value,
		FileCount: len(cueFiles),
	}

	var errs []error
	modulesVal := value.LookupPath(cue.ParsePath("module"))
	if modulesVal.Exists() {
		iter, iterErr := modulesVal.Fields()
		if iterErr != nil {
			return result, []error{fmt.Errorf("iterating modules: %w", iterErr)}
		}
		for iter.Next() {
			mod, compileErr := CompileModule(iter.Value())
			if compileErr != nil {
				errs = append(errs, fmt.Errorf("module %s: %w", iter.Label(), compileErr))
				continue
			}
			result.Modules = append(result.Modules, *mod)
		}
	}

	if len(result.Modules) == 0 && len(errs) == 0 {
		errs = append(errs, fmt.Errorf("no modules found in %s", dir))
	}

	return result, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
