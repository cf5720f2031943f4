package lemma

// stopWordSets lists purely functional words per language: prepositions,
// conjunctions, particles and interjections. They carry no search meaning
// and are discarded before stemming.
var stopWordSets = map[string]map[string]struct{}{
	"russian": toSet([]string{
		// Prepositions
		"в", "во", "на", "с", "со", "по", "за", "к", "ко", "у", "о", "об",
		"обо", "от", "ото", "до", "из", "изо", "без", "безо", "под", "подо",
		"над", "надо", "при", "про", "для", "через", "между", "перед",
		"передо", "около", "возле", "кроме", "вместо", "среди", "сквозь",
		"ради", "вдоль", "посреди",

		// Conjunctions
		"и", "а", "но", "или", "да", "что", "чтобы", "как", "когда", "если",
		"хотя", "тоже", "также", "зато", "либо", "ибо", "пока", "будто",
		"словно", "притом", "причем", "однако",

		// Particles
		"не", "ни", "бы", "б", "ли", "ль", "же", "ж", "вот", "вон", "ведь",
		"даже", "лишь", "только", "уж", "пусть", "пускай", "разве", "неужели",
		"именно", "почти",

		// Interjections
		"ах", "ох", "эх", "ой", "ай", "ура", "увы", "эй", "ну", "фу", "тьфу",
	}),
	"english": toSet([]string{
		// Prepositions
		"of", "at", "by", "for", "with", "about", "against", "between",
		"into", "through", "during", "before", "after", "above", "below",
		"to", "from", "up", "down", "in", "out", "on", "off", "over", "under",

		// Conjunctions
		"and", "or", "but", "if", "while", "because", "as", "until", "than",
		"so", "nor", "yet",

		// Articles and particles
		"a", "an", "the", "not", "no",

		// Interjections
		"oh", "ah", "ouch", "wow", "hey", "alas",
	}),
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
