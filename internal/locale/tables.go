package locale

var tables = map[Locale]*Table{
	German: {
		StopWords: set(
			"der", "die", "das", "den", "dem", "des", "ein", "eine", "einen", "einem",
			"und", "oder", "für", "mit", "von", "zu", "zum", "zur", "im", "in", "am",
			"an", "auf", "bitte", "ich", "du", "wir", "mir", "mich", "mal", "noch",
			"ist", "es", "ja", "nein", "gerne", "möchte", "will", "bei",
		),
		Numbers: map[string]int{
			"null": 0, "eins": 1, "ein": 1, "eine": 1, "einen": 1, "zwei": 2, "zwo": 2,
			"drei": 3, "vier": 4, "fünf": 5, "sechs": 6, "sieben": 7, "acht": 8,
			"neun": 9, "zehn": 10, "elf": 11, "zwölf": 12, "dreizehn": 13,
			"vierzehn": 14, "fünfzehn": 15, "sechzehn": 16, "siebzehn": 17,
			"achtzehn": 18, "neunzehn": 19, "zwanzig": 20, "dreissig": 30,
			"dreißig": 30, "vierzig": 40, "fünfzig": 50,
		},
		Dates: map[string]string{
			"heute":      DateToday,
			"morgen":     DateTomorrow,
			"übermorgen": DateDayAfterTomorrow,
			"gestern":    DateYesterday,
			"vorgestern": DateDayBeforeYesterday,
		},
		Verbs: set(
			"bestellen", "bestellung", "bestelle", "zeige", "zeigen", "öffne", "öffnen",
			"gehe", "gehen", "zahlen", "bezahlen", "hinzufügen", "reservieren",
			"suche", "suchen", "storniere", "stornieren",
		),
		TableWords:  set("tisch"),
		PersonWords: set("personen", "person", "leute", "gäste"),
	},
	SwissGerman: {
		StopWords: set(
			"de", "d", "s", "es", "isch", "mir", "mer", "mol", "gärn", "fürs",
			"vo", "uf", "und", "oder", "bitte", "ich", "du", "öppis", "no", "au",
		),
		Numbers: map[string]int{
			"nüt": 0, "eis": 1, "ais": 1, "ei": 1, "zwöi": 2, "zwoi": 2, "zwee": 2,
			"drü": 3, "vieri": 4, "füf": 5, "föif": 5, "foif": 5, "füüf": 5,
			"sächs": 6, "säx": 6, "sibe": 7, "siebe": 7, "achti": 8, "nün": 9,
			"nüün": 9, "zäh": 10, "zää": 10, "elfi": 11, "zwölfi": 12,
			"drizäh": 13, "vierzäh": 14, "füfzäh": 15, "foifzäh": 15,
			"sächzäh": 16, "sibezäh": 17, "achzäh": 18, "nünzäh": 19, "zwänzg": 20,
		},
		Dates: map[string]string{
			"hüt":         DateToday,
			"hüüt":        DateToday,
			"morn":        DateTomorrow,
			"übermorn":    DateDayAfterTomorrow,
			"geschter":    DateYesterday,
			"vorgeschter": DateDayBeforeYesterday,
		},
		Verbs: set(
			"bstelle", "bstellig", "zahle", "zeig", "gang", "gönd", "reserviere",
			"tue", "mach",
		),
		TableWords:  set("tisch", "tischli"),
		PersonWords: set("lüt", "persone"),
	},
	French: {
		StopWords: set(
			"le", "la", "les", "un", "une", "des", "de", "du", "et", "ou", "pour",
			"avec", "je", "nous", "vous", "sil", "plait", "à", "au", "en",
		),
		Numbers: map[string]int{
			"zéro": 0, "un": 1, "une": 1, "deux": 2, "trois": 3, "quatre": 4,
			"cinq": 5, "six": 6, "sept": 7, "huit": 8, "neuf": 9, "dix": 10,
			"onze": 11, "douze": 12, "treize": 13, "quatorze": 14, "quinze": 15,
			"seize": 16, "vingt": 20, "trente": 30,
		},
		Dates: map[string]string{
			"aujourdhui":   DateToday,
			"demain":       DateTomorrow,
			"après-demain": DateDayAfterTomorrow,
			"hier":         DateYesterday,
			"avant-hier":   DateDayBeforeYesterday,
		},
		Verbs: set(
			"commander", "commande", "montrer", "montre", "payer", "ajouter",
			"réserver", "aller", "chercher", "ouvrir",
		),
		TableWords:  set("table"),
		PersonWords: set("personnes", "personne", "couverts"),
	},
	Italian: {
		StopWords: set(
			"il", "lo", "la", "i", "gli", "le", "un", "una", "di", "da", "per",
			"con", "e", "o", "ti", "prego", "favore", "a", "al", "in",
		),
		Numbers: map[string]int{
			"zero": 0, "uno": 1, "una": 1, "due": 2, "tre": 3, "quattro": 4,
			"cinque": 5, "sei": 6, "sette": 7, "otto": 8, "nove": 9, "dieci": 10,
			"undici": 11, "dodici": 12, "tredici": 13, "quattordici": 14,
			"quindici": 15, "sedici": 16, "venti": 20, "trenta": 30,
		},
		Dates: map[string]string{
			"oggi":       DateToday,
			"domani":     DateTomorrow,
			"dopodomani": DateDayAfterTomorrow,
			"ieri":       DateYesterday,
			"altroieri":  DateDayBeforeYesterday,
		},
		Verbs: set(
			"ordinare", "ordina", "mostra", "mostrare", "pagare", "aggiungi",
			"prenotare", "vai", "cerca", "apri",
		),
		TableWords:  set("tavolo"),
		PersonWords: set("persone", "coperti"),
	},
	English: {
		StopWords: set(
			"the", "a", "an", "and", "or", "for", "with", "to", "of", "in", "on",
			"at", "please", "i", "me", "my", "we", "is", "it", "can", "you", "would",
			"like",
		),
		Numbers: map[string]int{
			"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
			"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11,
			"twelve": 12, "thirteen": 13, "fourteen": 14, "fifteen": 15,
			"sixteen": 16, "twenty": 20, "thirty": 30,
		},
		Dates: map[string]string{
			"today":                DateToday,
			"tomorrow":             DateTomorrow,
			"day after tomorrow":   DateDayAfterTomorrow,
			"yesterday":            DateYesterday,
			"day before yesterday": DateDayBeforeYesterday,
		},
		Verbs: set(
			"order", "show", "open", "go", "pay", "add", "reserve", "search",
			"navigate", "cancel", "checkout",
		),
		TableWords:  set("table"),
		PersonWords: set("people", "persons", "guests", "person"),
	},
}
