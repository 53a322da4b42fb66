package instrument

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// YieldTarget is the call injected before every instrumentable call site.
// It is always excluded from instrumentation so repeated rewriting of the
// same module inserts no additional yields.
var YieldTarget = Ref{Module: "sched", Func: "yield", Arity: 0}

// Policy decides which call sites are instrumentable.
//
// IncludedModules restricts instrumentation to calls targeting the listed
// modules; empty means every module is eligible. ExcludedFunctions lists
// targets that are never instrumented regardless of module inclusion.
// Exclusion patterns accept four forms:
//
//	"func"             any module, any arity
//	"func/2"           any module, arity 2
//	"Module.func"      exact module, any arity
//	"Module.func/2"    exact module and arity
type Policy struct {
	IncludedModules   []string `yaml:"included_modules"`
	ExcludedFunctions []string `yaml:"excluded_functions"`
}

// DefaultPolicy instruments every call except the built-in exclusions.
func DefaultPolicy() Policy {
	return Policy{}
}

// LoadPolicy reads a policy from a YAML file.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file: %w", err)
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	return p, nil
}

// IsInstrumentable reports whether a call to target should receive a yield.
// The yield call itself is never instrumentable.
func (p Policy) IsInstrumentable(target Ref) bool {
	if target == YieldTarget {
		return false
	}

	if len(p.IncludedModules) > 0 {
		included := false
		for _, m := range p.IncludedModules {
			if m == target.Module {
				included = true
				break
			}
		}
		if !included {
			return false
		}
	}

	for _, pattern := range p.ExcludedFunctions {
		if matchesExclusion(pattern, target) {
			return false
		}
	}
	return true
}

// matchesExclusion checks a single exclusion pattern against a target.
func matchesExclusion(pattern string, target Ref) bool {
	name := pattern
	arity := -1
	if i := strings.LastIndex(pattern, "/"); i >= 0 {
		n, err := strconv.Atoi(pattern[i+1:])
		if err != nil {
			return false // malformed arity suffix matches nothing
		}
		arity = n
		name = pattern[:i]
	}

	module := ""
	if i := strings.LastIndex(name, "."); i >= 0 {
		module = name[:i]
		name = name[i+1:]
	}

	if name != target.Func {
		return false
	}
	if module != "" && module != target.Module {
		return false
	}
	if arity >= 0 && arity != target.Arity {
		return false
	}
	return true
}
