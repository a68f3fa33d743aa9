package core

// mandatoryHeaderKeys are RequiredHeaders in normalized form.
var mandatoryHeaderKeys = func() []string {
	keys := make([]string, len(RequiredHeaders))
	for i, h := range RequiredHeaders {
		keys[i] = NormalizeHeader(h)
	}
	return keys
}()

// LocateHeader returns the index of the first row whose normalized cells
// include every mandatory column, together with its HeaderMap.
func LocateHeader(table RawTable) (int, HeaderMap, error) {
	for i, row := range table {
		present := make(map[string]bool, len(row))
		for _, cell := range row {
			text, ok := AsText(cell)
			if !ok {
				continue
			}
			present[NormalizeHeader(text)] = true
		}
		if containsAll(present, mandatoryHeaderKeys) {
			return i, makeHeaderMap(row), nil
		}
	}
	return -1, nil, &MissingHeaderError{Required: RequiredHeaders}
}

func containsAll(set map[string]bool, keys []string) bool {
	for _, k := range keys {
		if !set[k] {
			return false
		}
	}
	return true
}

// makeHeaderMap keeps the first column for duplicated header keys.
func makeHeaderMap(row []any) HeaderMap {
	hm := make(HeaderMap, len(row))
	seen := make(map[string]bool, len(row))
	for i, cell := range row {
		text, ok := AsText(cell)
		if !ok {
			continue
		}
		key := NormalizeHeader(text)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		hm[i] = key
	}
	return hm
}

// Keys returns the header keys in column order.
func (h HeaderMap) Keys() []string {
	last := -1
	for i := range h {
		if i > last {
			last = i
		}
	}
	keys := make([]string, 0, len(h))
	for i := 0; i <= last; i++ {
		if k, ok := h[i]; ok {
			keys = append(keys, k)
		}
	}
	return keys
}
