package crawl

import "strings"

// prefectures are the 47 Japanese prefectures in romanization, used to tag
// regional pages.
var prefectures = []string{
	"Hokkaido", "Aomori", "Iwate", "Miyagi", "Akita", "Yamagata", "Fukushima",
	"Ibaraki", "Tochigi", "Gunma", "Saitama", "Chiba", "Tokyo", "Kanagawa",
	"Niigata", "Toyama", "Ishikawa", "Fukui", "Yamanashi", "Nagano", "Gifu",
	"Shizuoka", "Aichi", "Mie", "Shiga", "Kyoto", "Osaka", "Hyogo", "Nara",
	"Wakayama", "Tottori", "Shimane", "Okayama", "Hiroshima", "Yamaguchi",
	"Tokushima", "Kagawa", "Ehime", "Kochi", "Fukuoka", "Saga", "Nagasaki",
	"Kumamoto", "Oita", "Miyazaki", "Kagoshima", "Okinawa",
}

// prefectureListCutoff marks a page as nationwide rather than regional: a
// body naming more prefectures than this is a listing, not a page about one.
const prefectureListCutoff = 12

// DetectPrefecture guesses which prefecture a page is about. The path is the
// strongest signal, then the title, then the body; a body mentioning many
// prefectures is treated as a nationwide listing. "-" means no single
// prefecture.
func DetectPrefecture(path, title, body string) string {
	if p := matchOne(path); p != "" {
		return p
	}
	if p := matchOne(title); p != "" {
		return p
	}
	found := matchAll(body)
	if len(found) == 0 || len(found) > prefectureListCutoff {
		return "-"
	}
	return found[0]
}

// matchOne returns the prefecture named in s when exactly one is.
func matchOne(s string) string {
	found := matchAll(s)
	if len(found) == 1 {
		return found[0]
	}
	return ""
}

// matchAll returns the distinct prefectures named in s, in canonical order.
func matchAll(s string) []string {
	lower := strings.ToLower(s)
	var found []string
	for _, p := range prefectures {
		if strings.Contains(lower, strings.ToLower(p)) {
			found = append(found, p)
		}
	}
	return found
}
