// Copyright Lifeline Contributors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

// A CodeIdentifier identifies a function or method in the analyzed program. Empty fields match
// anything, so {Package: "os", Method: "Open"} matches os.Open with any receiver.
type CodeIdentifier struct {
	Package  string `yaml:"package"`
	Method   string `yaml:"method"`
	Receiver string `yaml:"receiver"`
}

// MatchesFunc returns true when the identifier matches the function described by the given
// package path, receiver type name and method name, comparing only non-empty fields.
func (cid CodeIdentifier) MatchesFunc(pkg string, receiver string, method string) bool {
	return (cid.Package == "" || cid.Package == pkg) &&
		(cid.Receiver == "" || cid.Receiver == receiver) &&
		(cid.Method == "" || cid.Method == method)
}

// ExistsCid is true if there is some identifier x in a such that f(x) is true.
func ExistsCid(a []CodeIdentifier, f func(identifier CodeIdentifier) bool) bool {
	for _, x := range a {
		if f(x) {
			return true
		}
	}
	return false
}
