// Package text provides utilities for text processing and analysis.
// This package includes reusable functions for character counting and text manipulation
// shared across the extraction and classification stages.
package text

// CountRunes counts the number of Unicode characters (runes) in the given text.
// This function correctly handles multi-byte characters including Japanese, Chinese,
// emoji, and other Unicode characters by counting runes instead of bytes.
//
// This utility is shared wherever text length matters (extraction minimums,
// notification truncation) to ensure consistent character counting behavior.
//
// Examples:
//
//	CountRunes("hello")          // returns 5 (ASCII text)
//	CountRunes("ã“ã‚“ã«ã¡ã¯")       // returns 5 (Japanese text)
//	CountRunes("helloä¸–ç•Œ")       // returns 7 (mixed text)
//	CountRunes("HelloğŸ‘‹")         // returns 6 (text with emoji)
//	CountRunes("")               // returns 0 (empty string)
func CountRunes(text string) int {
	return len([]rune(text))
}
