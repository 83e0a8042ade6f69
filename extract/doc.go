// Package extract turns documents into lazy streams of pages.
//
// A Source yields one core.PageRecord per page, in ascending page order,
// and holds at most one page of decoded text at a time. Iteration stops
// at the first error; open failures are reported as the first and only
// element.
package extract
