package nfe

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/invoices"
	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/pricing"
	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/units"
)

const sample = `<?xml version="1.0" encoding="UTF-8"?>
<nfeProc xmlns="http://www.portalfiscal.inf.br/nfe" versao="4.00">
  <NFe>
    <infNFe Id="NFe35250111222333000181550010000012341000012345" versao="4.00">
      <ide>
        <serie>1</serie>
        <nNF>1234</nNF>
        <dhEmi>2025-01-15T10:30:00-03:00</dhEmi>
      </ide>
      <emit>
        <CNPJ>11222333000181</CNPJ>
        <xNome>METALURGICA PAULISTA LTDA</xNome>
      </emit>
      <det nItem="1">
        <prod>
          <cProd>AC1020</cProd>
          <xProd>ACO CARBONO 1020</xProd>
          <uCom>KG</uCom>
          <qCom>100.0000</qCom>
          <vUnCom>8.2000000000</vUnCom>
          <vProd>820.00</vProd>
        </prod>
      </det>
      <det nItem="2">
        <prod>
          <cProd>FT01</cProd>
          <xProd>FITA ISOLANTE</xProd>
          <uCom>RL</uCom>
          <qCom>3.0000</qCom>
          <vUnCom>12.5000000000</vUnCom>
          <vProd>40.00</vProd>
        </prod>
      </det>
    </infNFe>
  </NFe>
  <protNFe versao="4.00">
    <infProt>
      <chNFe>35250111222333000181550010000012341000012345</chNFe>
    </infProt>
  </protNFe>
</nfeProc>`

func TestParse(t *testing.T) {
	b, err := Parse([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	h := b.Header
	if h.Number != "1234" || h.Series != "1" || h.Origin != pricing.OriginNotaXML {
		t.Errorf("header = %+v", h)
	}
	if len(h.AccessKey) != 44 || len(h.FileHash) != 32 {
		t.Errorf("access key %q hash %q", h.AccessKey, h.FileHash)
	}
	if h.SupplierCNPJ != "11222333000181" || h.SupplierName != "METALURGICA PAULISTA LTDA" {
		t.Errorf("supplier = %q %q", h.SupplierName, h.SupplierCNPJ)
	}
	if !h.IssuedAt.Equal(time.Date(2025, 1, 15, 13, 30, 0, 0, time.UTC)) {
		t.Errorf("issued at %v", h.IssuedAt)
	}
	if len(b.Items) != 2 {
		t.Fatalf("items = %d", len(b.Items))
	}

	n := invoices.NewNormalizer(invoices.DefaultTotalTolerance)
	aco := n.Normalize(b.Items[0])
	if aco.Material != "ACO CARBONO 1020" || aco.Unit != units.KG || !aco.UnitPrice.Equal(decimal.RequireFromString("8.2")) {
		t.Errorf("item 0 = %+v", aco)
	}
	fita := n.Normalize(b.Items[1])
	if !fita.HasFlag(invoices.FlagTotalMismatch) {
		t.Errorf("3 x 12.50 != 40.00 must be flagged, flags = %v", fita.Flags)
	}
}

func TestParseWithoutInvoice(t *testing.T) {
	if _, err := Parse([]byte(`<root><foo/></root>`)); !errors.Is(err, ErrNoInvoice) {
		t.Errorf("err = %v", err)
	}
	if _, err := Parse([]byte(`<infNFe Id="NFe1"><ide><nNF>1</nNF></ide></infNFe>`)); !errors.Is(err, invoices.ErrEmptyInvoice) {
		t.Errorf("err = %v", err)
	}
}
