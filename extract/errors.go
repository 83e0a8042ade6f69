// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package extract

import "errors"

var (
	// ErrOpenDocument is returned when a document cannot be opened or fails validation.
	ErrOpenDocument = errors.New("cannot open document")

	// ErrInvalidPDF is returned, alongside ErrOpenDocument, when a PDF fails
	// structural validation.
	ErrInvalidPDF = errors.New("invalid pdf structure")

	// ErrDecodePage is returned when text cannot be decoded from a page.
	ErrDecodePage = errors.New("cannot decode page")

	// ErrUnsupportedFormat is returned by ForPath for unknown file extensions.
	ErrUnsupportedFormat = errors.New("unsupported document format")
)
