package core

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// scanner maps SQL result rows onto structs by reflection. Column names
// match struct fields through the db:"" tag, or the lowercased field name.
type scanner struct {
	mu    sync.RWMutex
	cache map[reflect.Type]*structInfo
}

type structInfo struct {
	fields []*fieldInfo
}

type fieldInfo struct {
	index  []int // index path, for embedded structs
	dbName string
}

func newScanner() *scanner {
	return &scanner{cache: make(map[reflect.Type]*structInfo)}
}

var globalScanner = newScanner()

func (s *scanner) getStructInfo(typ reflect.Type) (*structInfo, error) {
	s.mu.RLock()
	info, ok := s.cache[typ]
	s.mu.RUnlock()
	if ok {
		return info, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if info, ok := s.cache[typ]; ok {
		return info, nil
	}

	info, err := s.buildStructInfo(typ, nil)
	if err != nil {
		return nil, err
	}
	s.cache[typ] = info
	return info, nil
}

func (s *scanner) buildStructInfo(typ reflect.Type, index []int) (*structInfo, error) {
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("scanner: expected struct, got %s", typ.Kind())
	}

	info := &structInfo{}
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}

		fieldIndex := append(append([]int{}, index...), i)

		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			nested, err := s.buildStructInfo(field.Type, fieldIndex)
			if err != nil {
				return nil, err
			}
			info.fields = append(info.fields, nested.fields...)
			continue
		}

		dbName := field.Name
		if tag, ok := field.Tag.Lookup("db"); ok {
			if tag == "-" {
				continue
			}
			dbName = tag
		}

		info.fields = append(info.fields, &fieldInfo{
			index:  fieldIndex,
			dbName: strings.ToLower(dbName),
		})
	}
	return info, nil
}

// scanStruct fills one struct from a positioned *sql.Rows.
func (s *scanner) scanStruct(rows *sql.Rows, dest interface{}) error {
	destValue := reflect.ValueOf(dest)
	if destValue.Kind() != reflect.Ptr {
		return fmt.Errorf("scanner: dest must be pointer to struct, got %T", dest)
	}
	destValue = destValue.Elem()
	if destValue.Kind() != reflect.Struct {
		return fmt.Errorf("scanner: dest must be pointer to struct, got pointer to %s", destValue.Kind())
	}

	info, err := s.getStructInfo(destValue.Type())
	if err != nil {
		return err
	}
	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("scanner: failed to get columns: %w", err)
	}

	dests, err := scanDestinations(destValue, info, columns)
	if err != nil {
		return err
	}
	if err := rows.Scan(dests...); err != nil {
		return fmt.Errorf("scanner: scan failed: %w", err)
	}
	return nil
}

// scanStructs fills a slice of structs (or struct pointers) from *sql.Rows,
// consuming every row.
func (s *scanner) scanStructs(rows *sql.Rows, dest interface{}) error {
	destValue := reflect.ValueOf(dest)
	if destValue.Kind() != reflect.Ptr {
		return fmt.Errorf("scanner: dest must be pointer to slice, got %T", dest)
	}
	sliceValue := destValue.Elem()
	if sliceValue.Kind() != reflect.Slice {
		return fmt.Errorf("scanner: dest must be pointer to slice, got pointer to %s", sliceValue.Kind())
	}

	elemType := sliceValue.Type().Elem()
	isPtr := elemType.Kind() == reflect.Ptr
	if isPtr {
		elemType = elemType.Elem()
	}
	if elemType.Kind() != reflect.Struct {
		return fmt.Errorf("scanner: slice element must be struct or *struct, got %s", elemType.Kind())
	}

	info, err := s.getStructInfo(elemType)
	if err != nil {
		return err
	}
	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("scanner: failed to get columns: %w", err)
	}

	for rows.Next() {
		elemValue := reflect.New(elemType).Elem()
		dests, err := scanDestinations(elemValue, info, columns)
		if err != nil {
			return err
		}
		if err := rows.Scan(dests...); err != nil {
			return fmt.Errorf("scanner: scan failed: %w", err)
		}
		if isPtr {
			sliceValue.Set(reflect.Append(sliceValue, elemValue.Addr()))
		} else {
			sliceValue.Set(reflect.Append(sliceValue, elemValue))
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("scanner: rows iteration failed: %w", err)
	}
	return nil
}

// scanDestinations builds one scan target per result column: the matching
// field's address, or a throwaway for unmapped columns.
func scanDestinations(structValue reflect.Value, info *structInfo, columns []string) ([]interface{}, error) {
	fieldMap := make(map[string]*fieldInfo, len(info.fields))
	for _, f := range info.fields {
		fieldMap[f.dbName] = f
	}

	dests := make([]interface{}, len(columns))
	for i, colName := range columns {
		f, ok := fieldMap[strings.ToLower(colName)]
		if !ok {
			var dummy interface{}
			dests[i] = &dummy
			continue
		}
		fieldValue := structValue
		for _, idx := range f.index {
			fieldValue = fieldValue.Field(idx)
		}
		dests[i] = fieldValue.Addr().Interface()
	}
	return dests, nil
}
