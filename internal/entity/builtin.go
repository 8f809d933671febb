package entity

import "plantload/internal/coerce"

const (
	integer = coerce.Integer
	float   = coerce.Float
	date    = coerce.Date
	clock   = coerce.Time
	text    = coerce.Text
)

// balanceMetrics are the numeric columns of the production-balance report,
// named as the header normalizer synthesizes them.
var balanceMetrics = []string{
	"QLTotalAkt", "QLTotalPln", "ProcentDvtProduk",
	"ZmianaCzysty", "ZmianaPrg", "ZmianaStd",
	"QZmianaAkt", "QZmianaDocel", "QZmianaStd",
	"QCPKAkt", "QCPKDocel", "QCPKStd",
	"OpeLNShAkt", "OpeLNShDocel", "OpeLNShStd",
	"OpeELShAkt", "OpeELShDocel", "OpeELShStd",
	"GQLAkt", "GQLDocel", "GQLStd",
	"ProcentSCEff", "ProcentSCStd",
	"ProcentSREff", "ProcentSRStd",
	"ProcentSFSPEff", "ProcentSFSPStd",
	"GodzPracAkt", "GodzPracDocel", "GodzPracStd",
	"ProcentELiniaEff", "ProcentELiniaObb", "ProcentELiniaStd",
	"ProcentEPracEff", "ProcentEPracObb", "ProcentEPracStd",
	"ProcentZyskuEff", "ProcentZyskuObb", "ProcentZyskuStd",
}

func balanceSpec() Spec {
	s := Spec{
		Kind:         "bilans_produkcji",
		Folder:       "bilans",
		Format:       FormatBalance,
		DecimalComma: true,
		SourceColumns: []Column{
			{"Od", "Od"},
			{"Do", "Do"},
			{"Linia", "LiniaId"},
			{"Rodzina", "Rodzina"},
		},
		TargetTable:   "BilansProdukcji",
		TargetColumns: []string{"BilansId", "Od", "Do", "LiniaId", "Rodzina"},
		ColumnTypes: map[string]coerce.Type{
			"BilansId": text,
			"Od":       date,
			"Do":       date,
			"LiniaId":  integer,
			"Rodzina":  text,
		},
		Derive: []string{"balance_key"},
	}
	for _, m := range balanceMetrics {
		s.SourceColumns = append(s.SourceColumns, Column{m, m})
		s.TargetColumns = append(s.TargetColumns, m)
		s.ColumnTypes[m] = float
	}
	return s
}

// DefaultSpecs returns the built-in SAP maintenance and production entities.
func DefaultSpecs() []Spec {
	return []Spec{
		{
			Kind:   "zlecenia",
			Folder: "zlecenia",
			SourceColumns: []Column{
				{"Nr zlecenia", "ZlecenieId"},
				{"Rodzaj", "ZlecenieRodzaj"},
				{"Data", "DataUtworzenia"},
				{"Godzina", "CzasUtworzenia"},
			},
			TargetTable:   "Zlecenia",
			TargetColumns: []string{"ZlecenieId", "ZlecenieRodzaj", "DataUtworzenia", "CzasUtworzenia"},
			ColumnTypes: map[string]coerce.Type{
				"ZlecenieId":     integer,
				"ZlecenieRodzaj": text,
				"DataUtworzenia": date,
				"CzasUtworzenia": clock,
			},
		},
		{
			Kind:         "zawiadomienia",
			Folder:       "zawiadomienia",
			DecimalComma: true,
			SourceColumns: []Column{
				{"Zawiadomienie", "ZawiadomienieId"},
				{"Rodzaj", "ZawiadomienieRodzaj"},
				{"Nr zlecenia", "ZlecenieId"},
				{"Lokalizacja", "Lokalizacja"},
				{"Lokalizacja funkcjonalna", "LokalizacjaFunkcjonalnaId"},
				{"Urządzenie", "UrzadzenieId"},
				{"Utworzono dnia", "DataUtworzenia"},
				{"Kod uszkodzenia", "UszkodzenieId"},
				{"Kod przyczyny", "PrzyczynaId"},
				{"Początek zakłócenia", "DataPoczatkuZaklocenia"},
				{"Koniec zakłócenia", "DataKoncaZaklocenia"},
				{"Pocz. zakłóc. (godz.)", "CzasPoczatkuZaklocenia"},
				{"Koniec zakłóc.(godz.)", "CzasKoncaZaklocenia"},
				{"Przestój", "Przestoj"},
				{"Czas przestoju", "CzasPrzestoju"},
				{"Jedn. czasu przest.", "JednostkaCzasu"},
			},
			TargetTable: "Zawiadomienia",
			TargetColumns: []string{
				"ZawiadomienieId", "ZawiadomienieRodzaj", "ZlecenieId", "Lokalizacja",
				"LokalizacjaFunkcjonalnaId", "UrzadzenieId", "DataUtworzenia", "UszkodzenieId",
				"PrzyczynaId", "DataPoczatkuZaklocenia", "DataKoncaZaklocenia",
				"CzasPoczatkuZaklocenia", "CzasKoncaZaklocenia", "Przestoj",
				"CzasPrzestoju", "JednostkaCzasu",
			},
			ColumnTypes: map[string]coerce.Type{
				"ZawiadomienieId":           integer,
				"ZawiadomienieRodzaj":       text,
				"ZlecenieId":                integer,
				"Lokalizacja":               text,
				"LokalizacjaFunkcjonalnaId": text,
				"UrzadzenieId":              integer,
				"DataUtworzenia":            date,
				"UszkodzenieId":             integer,
				"PrzyczynaId":               integer,
				"DataPoczatkuZaklocenia":    date,
				"DataKoncaZaklocenia":       date,
				"CzasPoczatkuZaklocenia":    clock,
				"CzasKoncaZaklocenia":       clock,
				"Przestoj":                  text,
				"CzasPrzestoju":             float,
				"JednostkaCzasu":            text,
			},
		},
		{
			Kind:   "linie",
			Folder: "lokalizacja_funkcjonalna",
			SourceColumns: []Column{
				{"Lokaliz. funkc.", "LokalizacjaFunkcjonalnaId"},
				{"Oznaczenie", "LiniaNazwa"},
			},
			TargetTable:   "Linie",
			TargetColumns: []string{"LiniaId", "LiniaNazwa"},
			ColumnTypes: map[string]coerce.Type{
				"LiniaId":    text,
				"LiniaNazwa": text,
			},
			Derive: []string{"line_rollup"},
		},
		{
			Kind:   "lokalizacja_funkcjonalna",
			Folder: "lokalizacja_funkcjonalna",
			SourceColumns: []Column{
				{"Lokaliz. funkc.", "LokalizacjaFunkcjonalnaId"},
				{"Oznaczenie", "LokalizacjaFunkcjonalnaNazwa"},
			},
			TargetTable:   "LokalizacjaFunkcjonalna",
			TargetColumns: []string{"LokalizacjaFunkcjonalnaId", "LokalizacjaFunkcjonalnaNazwa", "LiniaId"},
			ColumnTypes: map[string]coerce.Type{
				"LokalizacjaFunkcjonalnaId":    text,
				"LokalizacjaFunkcjonalnaNazwa": text,
				"LiniaId":                      text,
			},
			Derive: []string{"parent_line"},
		},
		{
			Kind:   "przyczyny",
			Folder: "zawiadomienia",
			SourceColumns: []Column{
				{"Kod przyczyny", "PrzyczynaId"},
				{"Tekst kodu przyczyny", "PrzyczynaNazwa"},
			},
			TargetTable:   "Przyczyny",
			TargetColumns: []string{"PrzyczynaId", "PrzyczynaNazwa"},
			ColumnTypes:   map[string]coerce.Type{"PrzyczynaId": integer, "PrzyczynaNazwa": text},
		},
		{
			Kind:   "uszkodzenia",
			Folder: "zawiadomienia",
			SourceColumns: []Column{
				{"Kod uszkodzenia", "UszkodzenieId"},
				{"Tekst dot. szkody", "UszkodzenieNazwa"},
			},
			TargetTable:   "Uszkodzenia",
			TargetColumns: []string{"UszkodzenieId", "UszkodzenieNazwa"},
			ColumnTypes:   map[string]coerce.Type{"UszkodzenieId": integer, "UszkodzenieNazwa": text},
		},
		{
			Kind:   "urzadzenia",
			Folder: "urzadzenia",
			SourceColumns: []Column{
				{"Urządzenie", "UrzadzenieId"},
				{"Oznaczenie obiektu technicznego", "UrzadzenieNazwa"},
			},
			TargetTable:   "Urzadzenia",
			TargetColumns: []string{"UrzadzenieId", "UrzadzenieNazwa"},
			ColumnTypes:   map[string]coerce.Type{"UrzadzenieId": integer, "UrzadzenieNazwa": text},
		},
		{
			Kind:   "rodzaje_zawiadomienia",
			Folder: "rodzaje_zawiadomienia",
			SourceColumns: []Column{
				{"Rdz.", "ZawiadomienieRodzaj"},
				{"Rodzaj zawiadomienia", "ZawiadomienieRodzajNazwa"},
			},
			TargetTable:   "RodzajeZawiadomienia",
			TargetColumns: []string{"ZawiadomienieRodzaj", "ZawiadomienieRodzajNazwa"},
			ColumnTypes:   map[string]coerce.Type{"ZawiadomienieRodzaj": text, "ZawiadomienieRodzajNazwa": text},
		},
		{
			Kind:   "rodzaje_zlecenia",
			Folder: "rodzaje_zlecenia",
			SourceColumns: []Column{
				{"Rdz.", "ZlecenieRodzaj"},
				{"Oznaczenie", "ZlecenieRodzajNazwa"},
			},
			TargetTable:   "RodzajeZlecenia",
			TargetColumns: []string{"ZlecenieRodzaj", "ZlecenieRodzajNazwa"},
			ColumnTypes:   map[string]coerce.Type{"ZlecenieRodzaj": text, "ZlecenieRodzajNazwa": text},
		},
		balanceSpec(),
	}
}

// Default returns a registry of DefaultSpecs. The built-in specs are known to
// be valid, so a failure here is a programming error.
func Default() *Registry {
	r, err := NewRegistry(DefaultSpecs()...)
	if err != nil {
		panic(err)
	}
	return r
}
