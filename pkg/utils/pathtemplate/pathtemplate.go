// Package pathtemplate resolves output-path templates against song metadata.
package pathtemplate

import (
	"strconv"
	"strings"

	"thirdcoast.systems/crate/pkg/spotdl"
)

// Resolve substitutes the eight supported tokens in template with values
// from song. outputExt is the extension derived from the active audio
// format ("" when the format has no fixed extension). Substitution is
// literal and the tokens are disjoint, so replacement order does not
// matter. Tokens with no value are replaced by the empty string, never left
// as literal placeholders.
func Resolve(template string, song spotdl.SongInfo, outputExt string) string {
	r := strings.NewReplacer(
		"{album}", song.AlbumName,
		"{artist}", song.Artist,
		"{title}", song.Name,
		"{album-artist}", song.AlbumArtist,
		"{genre}", strings.Join(song.Genres, ", "),
		"{year}", yearString(song.Year),
		"{list-name}", song.ListName,
		"{output-ext}", outputExt,
	)
	return r.Replace(template)
}

func yearString(y int) string {
	if y == 0 {
		return ""
	}
	return strconv.Itoa(y)
}
