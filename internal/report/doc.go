// Package report renders the diff table, the sync summary and the device list
// for the terminal.
//
// Output is plain fixed-width text. Status labels are colored only when the
// destination is a terminal and NO_COLOR is unset.
package report
