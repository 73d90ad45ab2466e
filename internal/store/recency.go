package store

import "strings"

// upsertProduct removes any entry sharing p's id, appends p and trims the
// list to the last MaxProducts entries.
func upsertProduct(list []*Product, p *Product) []*Product {
	out := make([]*Product, 0, len(list)+1)
	for _, existing := range list {
		if existing.ID != p.ID {
			out = append(out, existing)
		}
	}
	out = append(out, p)
	if len(out) > MaxProducts {
		out = out[len(out)-MaxProducts:]
	}
	return out
}

// upsertReel is upsertProduct without the window.
func upsertReel(list []*Reel, r *Reel) []*Reel {
	out := make([]*Reel, 0, len(list)+1)
	for _, existing := range list {
		if existing.ID != r.ID {
			out = append(out, existing)
		}
	}
	return append(out, r)
}

// findProduct resolves an exact id first, then a unique prefix.
func findProduct(list []*Product, idOrPrefix string) (*Product, error) {
	idOrPrefix = strings.TrimSpace(idOrPrefix)
	if idOrPrefix == "" {
		return nil, nil
	}
	for _, p := range list {
		if p.ID == idOrPrefix {
			return p, nil
		}
	}
	if len(idOrPrefix) < MinPrefixLen {
		return nil, nil
	}
	var match *Product
	for _, p := range list {
		if strings.HasPrefix(p.ID, idOrPrefix) {
			if match != nil {
				return nil, ErrAmbiguousID
			}
			match = p
		}
	}
	return match, nil
}

func cloneProduct(p *Product) *Product {
	if p == nil {
		return nil
	}
	c := *p
	c.Images = append([]string(nil), p.Images...)
	return &c
}
