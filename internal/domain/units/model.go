package units

import "strings"

type Code string

const (
	KG     Code = "KG"
	G      Code = "G"
	L      Code = "L"
	ML     Code = "ML"
	M      Code = "M"
	CM     Code = "CM"
	UN     Code = "UN"
	PC     Code = "PC"
	JOGO   Code = "JOGO"
	CX     Code = "CX"
	ROLO   Code = "ROLO"
	BOBINA Code = "BOBINA"
	FARDO  Code = "FARDO"
	PACOTE Code = "PACOTE"
	FITA   Code = "FITA"
)

type Kind string

const (
	KindWeight    Kind = "weight"
	KindLength    Kind = "length"
	KindVolume    Kind = "volume"
	KindCount     Kind = "count"
	KindPackaging Kind = "packaging"
	KindCustom    Kind = "custom"
)

var vocabulary = map[Code]Kind{
	KG:     KindWeight,
	G:      KindWeight,
	L:      KindVolume,
	ML:     KindVolume,
	M:      KindLength,
	CM:     KindLength,
	UN:     KindCount,
	PC:     KindCount,
	JOGO:   KindCount,
	CX:     KindPackaging,
	ROLO:   KindPackaging,
	BOBINA: KindPackaging,
	FARDO:  KindPackaging,
	PACOTE: KindPackaging,
	FITA:   KindPackaging,
}

// написания, встречающиеся в НФ и ручном вводе
var aliases = map[string]Code{
	"KGS":      KG,
	"QUILO":    KG,
	"QUILOS":   KG,
	"GR":       G,
	"GRS":      G,
	"GRAMA":    G,
	"GRAMAS":   G,
	"LT":       L,
	"LTS":      L,
	"LITRO":    L,
	"LITROS":   L,
	"MT":       M,
	"MTS":      M,
	"METRO":    M,
	"METROS":   M,
	"U":        UN,
	"UND":      UN,
	"UNID":     UN,
	"UNIDADE":  UN,
	"UNIDADES": UN,
	"PÇ":       PC,
	"PÇS":      PC,
	"PCS":      PC,
	"PECA":     PC,
	"PEÇA":     PC,
	"PECAS":    PC,
	"PEÇAS":    PC,
	"CAIXA":    CX,
	"CXS":      CX,
	"RL":       ROLO,
	"BOB":      BOBINA,
	"PCT":      PACOTE,
	"PAC":      PACOTE,
	"FD":       FARDO,
	"JG":       JOGO,
}

// Resolve сопоставляет сырой текст единицы со словарём.
// Неизвестная единица возвращается как есть (без пробелов по краям) и ok=false.
func Resolve(raw string) (Code, bool) {
	s := strings.TrimSpace(raw)
	up := strings.ToUpper(s)
	if _, ok := vocabulary[Code(up)]; ok {
		return Code(up), true
	}
	if c, ok := aliases[up]; ok {
		return c, true
	}
	return Code(s), false
}

func KindOf(c Code) Kind {
	if k, ok := vocabulary[c]; ok {
		return k
	}
	return KindCustom
}

func Known(c Code) bool {
	_, ok := vocabulary[c]
	return ok
}
