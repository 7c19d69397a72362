/*
 * MIT License
 *
 * Copyright (c) 2026 meshnet authors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package transport

import "github.com/hashicorp/go-version"

// EngineVersion is this build's wire-engine revision, bumped whenever the
// connect/envelope layout in package wire changes in a way that isn't
// backward compatible. It is not carried on the wire itself (§4.A's
// connect record has no version field) — operators gate a rolling
// upgrade by requiring every node run at least MinEngineVersion via
// config, checked once at startup rather than per-connection.
var EngineVersion = version.Must(version.NewVersion("1.0.0"))

// CheckMinVersion returns an error if EngineVersion is older than min.
// An empty min disables the gate.
func CheckMinVersion(min string) error {
	if min == "" {
		return nil
	}
	required, err := version.NewVersion(min)
	if err != nil {
		return err
	}
	if EngineVersion.LessThan(required) {
		return &VersionError{Have: EngineVersion.String(), Want: required.String()}
	}
	return nil
}

// VersionError reports an engine build too old for the configured floor.
type VersionError struct {
	Have string
	Want string
}

func (e *VersionError) Error() string {
	return "engine version " + e.Have + " is older than required minimum " + e.Want
}
