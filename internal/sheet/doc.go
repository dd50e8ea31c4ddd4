// Package sheet reads recipient rows from spreadsheets.
//
// CSV files are parsed with gocsv and XLSX workbooks with excelize. Either
// way the first row is the header and every following row becomes a Row
// mapping header name to cell text. Missing cells read as "".
package sheet
