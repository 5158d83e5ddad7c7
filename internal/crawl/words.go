package crawl

import "math/rand/v2"

// searchWords seeds the platform-search driver when no submitted or suggested
// query is available.
var searchWords = []string{
	"music", "live", "news", "gaming", "tutorial", "review", "trailer",
	"highlights", "interview", "documentary", "comedy", "science", "history",
	"cooking", "travel", "sports", "football", "basketball", "chess", "piano",
	"guitar", "drums", "remix", "cover", "karaoke", "unboxing", "speedrun",
	"podcast", "lecture", "debate", "workout", "yoga", "recipe", "garden",
	"woodworking", "painting", "drawing", "animation", "film", "photography",
	"space", "ocean", "wildlife", "weather", "physics", "chemistry", "biology",
	"math", "coding", "linux", "robotics", "electronics", "cars", "motorcycle",
	"train", "airplane", "fishing", "camping", "hiking", "skiing", "surfing",
	"dance", "ballet", "opera", "jazz", "blues", "rock", "metal", "folk",
	"rap", "techno", "ambient", "asmr", "meditation", "language", "japanese",
	"spanish", "german", "french", "economy", "finance", "crypto", "startup",
}

// RandomWord returns a uniformly random dictionary word.
func RandomWord() string {
	return searchWords[rand.IntN(len(searchWords))]
}
