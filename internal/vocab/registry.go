package vocab

import "fmt"

// Registry holds the loaded domains in load order.
type Registry struct {
	domains []*Domain
	byName  map[string]*Domain
}

func newRegistry() *Registry {
	return &Registry{byName: make(map[string]*Domain)}
}

func (r *Registry) add(d *Domain) error {
	if _, dup := r.byName[d.Name]; dup {
		return fmt.Errorf("duplicate domain %q", d.Name)
	}
	r.domains = append(r.domains, d)
	r.byName[d.Name] = d
	return nil
}

// Domain returns the named domain.
func (r *Registry) Domain(name string) (*Domain, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// Domains returns all domains in load order.
func (r *Registry) Domains() []*Domain {
	return r.domains
}

// Names returns the domain names in load order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.domains))
	for i, d := range r.domains {
		out[i] = d.Name
	}
	return out
}
