// Licensed to NASA JPL under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. NASA JPL licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package fileaccess

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/redglacier/core/core/utils"
)

// In-memory implementation for unit tests. Objects are keyed by
// bucket + "/" + path. Safe for concurrent use as the batch
// orchestrator tests exercise it from multiple goroutines.
type MemoryAccess struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func MakeMemoryAccess() *MemoryAccess {
	return &MemoryAccess{objects: map[string][]byte{}}
}

type memoryNotFoundError struct {
	key string
}

func (e memoryNotFoundError) Error() string {
	return fmt.Sprintf("object not found: %v", e.key)
}

func (m *MemoryAccess) ListObjects(bucket string, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := []string{}
	for key := range m.objects {
		if strings.HasPrefix(key, bucket+"/"+prefix) {
			result = append(result, key[len(bucket)+1:])
		}
	}
	sort.Strings(result)
	return result, nil
}

func (m *MemoryAccess) ObjectExists(bucket string, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.objects[bucket+"/"+path]
	return ok, nil
}

func (m *MemoryAccess) ReadObject(bucket string, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := bucket + "/" + path
	data, ok := m.objects[key]
	if !ok {
		return nil, memoryNotFoundError{key}
	}
	return data, nil
}

func (m *MemoryAccess) WriteObject(bucket string, path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	saved := make([]byte, len(data))
	copy(saved, data)
	m.objects[bucket+"/"+path] = saved
	return nil
}

func (m *MemoryAccess) ReadJSON(bucket string, path string, itemsPtr interface{}, emptyIfNotFound bool) error {
	data, err := m.ReadObject(bucket, path)
	if err != nil {
		if emptyIfNotFound && m.IsNotFoundError(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, itemsPtr)
}

func (m *MemoryAccess) WriteJSON(bucket string, path string, itemsPtr interface{}) error {
	data, err := json.MarshalIndent(itemsPtr, "", utils.PrettyPrintIndentForJSON)
	if err != nil {
		return err
	}
	return m.WriteObject(bucket, path, data)
}

func (m *MemoryAccess) DeleteObject(bucket string, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := bucket + "/" + path
	if _, ok := m.objects[key]; !ok {
		return memoryNotFoundError{key}
	}
	delete(m.objects, key)
	return nil
}

func (m *MemoryAccess) CopyObject(srcBucket string, srcPath string, dstBucket string, dstPath string) error {
	data, err := m.ReadObject(srcBucket, srcPath)
	if err != nil {
		return err
	}
	return m.WriteObject(dstBucket, dstPath, data)
}

func (m *MemoryAccess) IsNotFoundError(err error) bool {
	_, ok := err.(memoryNotFoundError)
	return ok
}
