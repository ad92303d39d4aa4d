package dynamic

import "fmt"

// IsInitialized reports whether every required field of m and of its
// sub-messages is set.
func (m *Message) IsInitialized() bool {
	return len(m.FindInitializationErrors()) == 0
}

// FindInitializationErrors returns the paths of unset required fields, such
// as "a", "sub.b", "items[2].c" or "by_key[k].d".
func (m *Message) FindInitializationErrors() []string {
	var missing []string
	m.findInitializationErrors("", &missing)
	return missing
}

func (m *Message) findInitializationErrors(prefix string, missing *[]string) {
	for _, f := range m.desc.AllFields() {
		if f.IsRequired() && !isSet(m.fields[f.Number]) {
			*missing = append(*missing, prefix+f.Name)
		}
	}
	for _, fv := range m.ListFields() {
		name := fv.Field.Name
		switch v := fv.Value.(type) {
		case *Message:
			v.findInitializationErrors(prefix+name+".", missing)
		case *List:
			for i, e := range v.values {
				if sub, ok := e.(*Message); ok {
					sub.findInitializationErrors(fmt.Sprintf("%s%s[%d].", prefix, name, i), missing)
				}
			}
		case *Map:
			if v.valueDesc == nil {
				continue
			}
			for _, k := range v.Keys() {
				v.entries[k].(*Message).findInitializationErrors(fmt.Sprintf("%s%s[%v].", prefix, name, k), missing)
			}
		}
	}
}
