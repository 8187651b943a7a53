package history

// ChecksumID derives the history entry id from the song name and the
// resolved file path by summing the code points of their concatenation.
// Equal inputs always produce equal ids, which is the property finalization
// relies on, but the sum is collision-prone: any permutation of the same
// characters yields the same id. Inserts therefore upsert on id rather than
// assuming uniqueness.
func ChecksumID(songName, filePath string) int64 {
	var sum int64
	for _, r := range songName + filePath {
		sum += int64(r)
	}
	return sum
}
