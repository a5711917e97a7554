package forecast

import (
	"fmt"
	"sort"
	"strings"
)

// Provider creates an unfitted model. Models keep fitted state, so every
// forecast gets a fresh one.
type Provider func() Model

var providers = make(map[string]Provider)

func Register(name string, p Provider) {
	upperName := strings.ToUpper(name)
	if _, exist := providers[upperName]; exist {
		panic(fmt.Errorf("%q already exists in model registry", name))
	}
	providers[upperName] = p
}

// New returns a fresh model registered under name, ignoring case.
func New(name string) (Model, error) {
	if p, ok := providers[strings.ToUpper(name)]; ok {
		return p(), nil
	}
	return nil, fmt.Errorf("unknown model %q, choose one of %s", name, strings.Join(Names(), ", "))
}

func Names() []string {
	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, p().Name())
	}
	sort.Strings(names)
	return names
}
