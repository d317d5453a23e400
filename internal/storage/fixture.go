/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package storage

import (
	"io"
	"os"

	"gopkg.in/yaml.v3"

	ferrors "flysearch/internal/errors"
)

// Fixture is a YAML document describing tables and their records:
//
//	tables:
//	  - schema: dev
//	    table: dog
//	    hash_attribute: id
//	    attributes: [id, name, breed]
//	    records:
//	      - {id: 1, name: Rex, breed: Mutt}
//	      - {id: 2, name: Fido}
type Fixture struct {
	Tables []TableFixture `yaml:"tables"`
}

// TableFixture is one table of a Fixture.
type TableFixture struct {
	Schema        string                   `yaml:"schema"`
	Table         string                   `yaml:"table"`
	HashAttribute string                   `yaml:"hash_attribute"`
	Attributes    []string                 `yaml:"attributes"`
	Records       []map[string]interface{} `yaml:"records"`
}

func decodeFixture(r io.Reader) (*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f Fixture
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, ferrors.InvalidValue("fixture", err.Error()).WithCause(err)
	}
	return &f, nil
}

// Load reads a YAML fixture from r into the store.
func (s *Store) Load(r io.Reader) error {
	f, err := decodeFixture(r)
	if err != nil {
		return err
	}
	return s.Apply(f)
}

// Replace swaps the whole content of the store for the fixture read from
// r. The fixture is loaded aside first, so a bad fixture leaves the store
// untouched and queries never observe a partly loaded state. Change
// listeners are notified for every table that existed before or after.
func (s *Store) Replace(r io.Reader) error {
	f, err := decodeFixture(r)
	if err != nil {
		return err
	}
	staging := New(WithCollator(s.collator))
	if err := staging.Apply(f); err != nil {
		return err
	}

	s.mu.Lock()
	old := s.tables
	s.tables = staging.tables
	s.mu.Unlock()

	changed := make([]tableKey, 0, len(old)+len(staging.tables))
	for k := range old {
		changed = append(changed, k)
	}
	for k := range staging.tables {
		if _, ok := old[k]; !ok {
			changed = append(changed, k)
		}
	}
	s.notify(changed)
	return nil
}

// ReloadFixture replaces the store's content with the fixture at path.
func (s *Store) ReloadFixture(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return ferrors.NewStorageError("cannot open fixture").WithDetail(path).WithCause(err)
	}
	defer file.Close()
	return s.Replace(file)
}

// Apply creates the fixture's tables and puts its records.
func (s *Store) Apply(f *Fixture) error {
	records := 0
	for _, tf := range f.Tables {
		if err := s.CreateTable(tf.Schema, tf.Table, tf.HashAttribute, tf.Attributes...); err != nil {
			return err
		}
		for _, rec := range tf.Records {
			if err := s.Put(tf.Schema, tf.Table, rec); err != nil {
				return err
			}
		}
		records += len(tf.Records)
	}
	s.logger.Info("Loaded fixture", "tables", len(f.Tables), "records", records)
	return nil
}

// LoadFixture creates a Store and loads the YAML fixture at path into it.
func LoadFixture(path string, opts ...Option) (*Store, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, ferrors.NewStorageError("cannot open fixture").WithDetail(path).WithCause(err)
	}
	defer file.Close()

	s := New(opts...)
	if err := s.Load(file); err != nil {
		return nil, err
	}
	return s, nil
}
