// Copyright © Microsoft <wastore@microsoft.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package common

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// ExclusiveStringMap guards a namespace of names that must stay unique, such
// as the internal-name of a DynamicPropertyInfo within its owning TypeInterface.
type ExclusiveStringMap struct {
	lock          *sync.Mutex
	m             map[string]struct{}
	caseSensitive bool
}

func NewExclusiveStringMap(caseSensitive bool) *ExclusiveStringMap {
	return &ExclusiveStringMap{
		lock:          &sync.Mutex{},
		m:             make(map[string]struct{}),
		caseSensitive: caseSensitive,
	}
}

var ErrExclusiveStringMapCollision = errors.New("name already registered")

// Add succeeds if and only if key is not currently in the map
func (e *ExclusiveStringMap) Add(key string) error {
	key = e.convertCase(key)

	e.lock.Lock()
	defer e.lock.Unlock()

	_, alreadyThere := e.m[key]
	if alreadyThere {
		return ErrExclusiveStringMapCollision
	}
	e.m[key] = struct{}{}
	return nil
}

func (e *ExclusiveStringMap) Remove(key string) {
	key = e.convertCase(key)

	e.lock.Lock()
	defer e.lock.Unlock()

	delete(e.m, key)
}

func (e *ExclusiveStringMap) convertCase(s string) string {
	if e.caseSensitive {
		return s
	}
	return strings.ToLower(s)
}
