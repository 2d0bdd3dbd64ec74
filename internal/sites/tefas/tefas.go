// Package tefas describes the fund analysis page of the Turkish fund
// distribution platform (TEFAS).
package tefas

import (
	"net/url"
	"strings"

	"fundscrape/internal/extractor"
	"fundscrape/internal/scraper"
)

// DefaultBaseURL is the public TEFAS host.
const DefaultBaseURL = "https://www.tefas.gov.tr"

func init() {
	scraper.Register(&Profile{})
}

// Profile locates disclosure fields on FonAnaliz.aspx. The page has shipped
// both list (li/span) and table (td) layouts, so each field tries the known
// layouts in turn before a label-sibling catch-all.
type Profile struct{}

func (p *Profile) Name() string { return "tefas" }

func (p *Profile) PageURL(baseURL, key string) string {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return strings.TrimRight(baseURL, "/") + "/FonAnaliz.aspx?FonKod=" + url.QueryEscape(key)
}

func (p *Profile) Specs() []extractor.Spec {
	return []extractor.Spec{
		{Field: extractor.Category, Patterns: []string{
			"//li[contains(., 'Kategorisi')]/span",
			"//span[contains(text(), 'Kategorisi')]/following-sibling::span",
			"//td[contains(text(), 'Kategorisi')]/following-sibling::td",
			"//*[contains(text(), 'Kategorisi')]/following-sibling::*",
		}},
		{Field: extractor.InvestorCount, Patterns: []string{
			"//li[contains(., 'Yatırımcı Sayısı (Kişi)')]/span",
			"//span[contains(text(), 'Yatırımcı Sayısı')]/following-sibling::span",
			"//td[contains(text(), 'Yatırımcı Sayısı')]/following-sibling::td",
			"//*[contains(text(), 'Yatırımcı Sayısı')]/following-sibling::*",
		}},
		{Field: extractor.MarketShare, Patterns: []string{
			"//li[contains(., 'Pazar Payı')]/span",
			"//span[contains(text(), 'Pazar Payı')]/following-sibling::span",
			"//td[contains(text(), 'Pazar Payı')]/following-sibling::td",
			"//*[contains(text(), 'Pazar Payı')]/following-sibling::*",
		}},
		{Field: extractor.RiskValue, Patterns: []string{
			"//td[contains(text(), 'Fonun Risk Değeri')]/following-sibling::td",
			"//span[contains(text(), 'Risk Değeri')]/following-sibling::span",
			"//*[contains(text(), 'Risk Değeri')]/following-sibling::*",
		}},
		{Field: extractor.FundStatus, Patterns: []string{
			"//td[contains(text(), 'Platform İşlem Durumu')]/following-sibling::td",
			"//span[contains(text(), 'İşlem Durumu')]/following-sibling::span",
			"//*[contains(text(), 'İşlem Durumu')]/following-sibling::*",
		}},
	}
}

// Labels are the anchor texts the page inspector looks for.
func (p *Profile) Labels() []string {
	return []string{"Kategorisi", "Yatırımcı Sayısı", "Pazar Payı", "Risk Değeri", "İşlem Durumu"}
}
