package slowlog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/tidwall/gjson"
)

// ReadJSON reads a statement list. Meta values may be numbers or numeric
// strings; entries without a "sql" member are kept with an empty SQL so that
// the executor can skip them.
func ReadJSON(r io.Reader) ([]Statement, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("statement list is not valid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, fmt.Errorf("statement list must be a JSON array")
	}

	var statements []Statement
	for _, item := range root.Array() {
		st := Statement{SQL: item.Get("sql").String()}
		if meta := item.Get("meta"); meta.IsObject() {
			st.Meta = readMeta(meta)
		}
		statements = append(statements, st)
	}
	return statements, nil
}

func readMeta(meta gjson.Result) *Meta {
	var m Meta
	if v := meta.Get("query_time"); v.Exists() {
		f := v.Float()
		m.QueryTime = &f
	}
	if v := meta.Get("lock_time"); v.Exists() {
		f := v.Float()
		m.LockTime = &f
	}
	if v := meta.Get("rows_sent"); v.Exists() {
		n := v.Int()
		m.RowsSent = &n
	}
	if v := meta.Get("rows_examined"); v.Exists() {
		n := v.Int()
		m.RowsExamined = &n
	}
	return &m
}

// WriteJSON writes statements as a JSON list readable by ReadJSON.
func WriteJSON(w io.Writer, statements []Statement) error {
	if statements == nil {
		statements = []Statement{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(statements)
}

// WriteTempJSON writes statements to a new file in dir named after runID and
// returns its path. The caller removes the file.
func WriteTempJSON(dir, runID string, statements []Statement) (string, error) {
	f, err := os.CreateTemp(dir, "ezmyreplay-"+runID+"-*.json")
	if err != nil {
		return "", err
	}
	if err := WriteJSON(f, statements); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
