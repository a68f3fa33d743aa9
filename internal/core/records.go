package core

// NormalizeRows flattens every non-empty row below the header into a
// CanonicalRecord. Blank rows are skipped silently.
func NormalizeRows(table RawTable, headerIdx int, header HeaderMap) []CanonicalRecord {
	if headerIdx < 0 || headerIdx >= len(table) {
		return nil
	}

	var records []CanonicalRecord
	for offset, row := range table[headerIdx+1:] {
		fields := make(map[string]any, len(header))
		empty := true
		for col, key := range header {
			var v any
			if col < len(row) {
				v = row[col]
			}
			if !isBlank(v) {
				empty = false
			}
			fields[NormalizeHeader(key)] = v
		}
		if empty {
			continue
		}

		records = append(records, CanonicalRecord{
			SourceRow: headerIdx + offset + 2,
			Fields:    fields,
		})
	}
	return records
}
