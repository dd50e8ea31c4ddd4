// Package template fills HTML mail templates.
//
// Three placeholder syntaxes are recognised, applied in this order:
//
//	{{key}}        looked up as "key"; unmatched renders as the empty string
//	<key>          looked up as "<key>"; unmatched is left verbatim
//	&lt;key&gt;    looked up as "<key>"; unmatched is left verbatim
//
// Each pass only scans template text. A value inserted by an earlier pass is
// never scanned again, so a value that itself looks like a placeholder is
// emitted unchanged. Unmatched angle-bracket placeholders are kept so that
// ordinary HTML tags pass through untouched.
package template
