package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// LoadMode controls how errors are handled during manifest loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the manifests loaded from a directory.
type LoadResult struct {
	Interfaces []*InterfaceSpec
	CUEValue   cue.Value
	FileCount  int
}

// Lookup returns the manifest with the given name.
func (r *LoadResult) Lookup(name string) (*InterfaceSpec, bool) {
	for _, s := range r.Interfaces {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// LoadError represents an error that occurred during manifest loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Load error codes.
const (
	ErrCodeGeneric     = "E001" // generic/unknown error
	ErrCodeScanError   = "E002" // directory scan error
	ErrCodeNoFiles     = "E003" // no CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // path not found
	ErrCodeBuildFailed = "E006" // CUE build failed

	ErrCodeInvalidPath      = "E010"
	ErrCodeInvalidVersion   = "E011"
	ErrCodeInvalidAccepts   = "E012"
	ErrCodeInvalidThread    = "E013"
	ErrCodeInvalidPolicy    = "E014"
	ErrCodeInvalidBehavior  = "E015"
	ErrCodeInvalidCUEValue  = "E016"
	ErrCodeMissingInterface = "E017"
)

// LoadDir loads and compiles every interface manifest in dir.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadDir(dir string, mode LoadMode) (*LoadResult, []error) {
	var errs []error

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{
		CUEValue:  value,
		FileCount: len(cueFiles),
	}

	ifacesVal := value.LookupPath(cue.ParsePath("interface"))
	if !ifacesVal.Exists() {
		return result, []error{&LoadError{Code: ErrCodeMissingInterface, Message: "no interface manifests found in specs"}}
	}

	iter, err := ifacesVal.Fields()
	if err != nil {
		return result, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating interfaces: %v", err)}}
	}
	for iter.Next() {
		spec, compileErr := CompileInterface(iter.Value())
		if compileErr != nil {
			errs = append(errs, convertCompileError(compileErr, "interface."+iter.Label()))
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}
		result.Interfaces = append(result.Interfaces, spec)
	}

	if len(result.Interfaces) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeMissingInterface, Message: "no interface manifests found in specs"})
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

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s: %s", context, compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	if strings.HasPrefix(field, "accepts") {
		return ErrCodeInvalidAccepts
	}
	switch field {
	case "path":
		return ErrCodeInvalidPath
	case "version":
		return ErrCodeInvalidVersion
	case "kind", "until", "estimate_ms", "margin_ms", "priority_pct", "probability_pct":
		return ErrCodeInvalidThread
	case "publicity", "performance":
		return ErrCodeInvalidPolicy
	case "behavior":
		return ErrCodeInvalidBehavior
	case "cue":
		return ErrCodeInvalidCUEValue
	default:
		return ErrCodeGeneric
	}
}
