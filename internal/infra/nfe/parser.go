// Package nfe читает строки товаров из XML нот фискальных (NF-e).
package nfe

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/invoices"
	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/pricing"
)

var ErrNoInvoice = errors.New("nfe: infNFe element not found")

type infNFe struct {
	ID  string `xml:"Id,attr"`
	Ide struct {
		Number string `xml:"nNF"`
		Series string `xml:"serie"`
		DhEmi  string `xml:"dhEmi"`
		DEmi   string `xml:"dEmi"` // layout 2.0
	} `xml:"ide"`
	Emit struct {
		CNPJ string `xml:"CNPJ"`
		Name string `xml:"xNome"`
	} `xml:"emit"`
	Det []struct {
		Prod struct {
			Code      string `xml:"cProd"`
			Name      string `xml:"xProd"`
			Unit      string `xml:"uCom"`
			Quantity  string `xml:"qCom"`
			UnitPrice string `xml:"vUnCom"`
			Total     string `xml:"vProd"`
		} `xml:"prod"`
	} `xml:"det"`
}

func ParseFile(path string) (invoices.Batch, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return invoices.Batch{}, err
	}
	return Parse(content)
}

// Parse принимает как nfeProc, так и голый NFe. FileHash: md5 содержимого.
func Parse(content []byte) (invoices.Batch, error) {
	inf, accessKey, err := decode(bytes.NewReader(content))
	if err != nil {
		return invoices.Batch{}, err
	}
	if accessKey == "" {
		accessKey = strings.TrimPrefix(inf.ID, "NFe")
	}

	b := invoices.Batch{
		Header: invoices.Header{
			Number:       strings.TrimSpace(inf.Ide.Number),
			Series:       strings.TrimSpace(inf.Ide.Series),
			AccessKey:    accessKey,
			SupplierName: strings.TrimSpace(inf.Emit.Name),
			SupplierCNPJ: inf.Emit.CNPJ,
			IssuedAt:     issuedAt(inf.Ide.DhEmi, inf.Ide.DEmi),
			Origin:       pricing.OriginNotaXML,
			FileHash:     invoices.FileHash(content),
		},
	}
	for _, d := range inf.Det {
		p := d.Prod
		b.Items = append(b.Items, invoices.FromMap(map[string]any{
			"xProd":  p.Name,
			"uCom":   p.Unit,
			"qCom":   p.Quantity,
			"vUnCom": p.UnitPrice,
			"vProd":  p.Total,
		}))
	}
	if len(b.Items) == 0 {
		return b, fmt.Errorf("nfe %s: %w", b.Header.Number, invoices.ErrEmptyInvoice)
	}
	return b, nil
}

// decode ищет infNFe и chNFe (из protNFe) за один проход.
func decode(r io.Reader) (infNFe, string, error) {
	var (
		inf       infNFe
		found     bool
		accessKey string
	)
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return infNFe{}, "", fmt.Errorf("nfe: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "infNFe":
			if err := dec.DecodeElement(&inf, &se); err != nil {
				return infNFe{}, "", fmt.Errorf("nfe: %w", err)
			}
			found = true
		case "chNFe":
			var s string
			if err := dec.DecodeElement(&s, &se); err == nil {
				accessKey = strings.TrimSpace(s)
			}
		}
	}
	if !found {
		return infNFe{}, "", ErrNoInvoice
	}
	return inf, accessKey, nil
}

func issuedAt(dhEmi, dEmi string) time.Time {
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(dhEmi)); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", strings.TrimSpace(dEmi)); err == nil {
		return t
	}
	return time.Time{}
}
