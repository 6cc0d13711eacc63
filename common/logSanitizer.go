// Copyright Microsoft <wastore@microsoft.com>
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

import "strings"

// LogSanitizer is a backstop against logging values that came from dynamic
// properties carrying the Sensitive property flag
// (reflection.EPropertyFlags.Sensitive()). It does not replace marking
// properties correctly in the registry; it just reduces the blast radius of
// a mistake when a sensitive value gets interpolated into a log line anyway.
type LogSanitizer interface {
	SanitizeLogMessage(raw string) string
}

const redactedPlaceholder = "REDACTED"

type sensitiveValueSanitizer struct {
	values []string
}

// NewLogSanitizer returns a sanitizer that scrubs any previously-registered
// sensitive values out of a log line before it reaches disk.
func NewLogSanitizer() LogSanitizer {
	return &sensitiveValueSanitizer{}
}

func (s *sensitiveValueSanitizer) SanitizeLogMessage(raw string) string {
	for _, v := range s.values {
		if len(v) == 0 {
			continue
		}
		raw = strings.ReplaceAll(raw, v, redactedPlaceholder)
	}
	return raw
}

// RegisterSensitiveValue records a runtime value (typically the string form
// of a dynamic property whose DynamicPropertyInfo carries the Sensitive flag)
// so that future log lines have it redacted.
func (s *sensitiveValueSanitizer) RegisterSensitiveValue(v string) {
	s.values = append(s.values, v)
}
