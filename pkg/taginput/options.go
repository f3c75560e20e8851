package taginput

import (
	"strconv"
	"strings"

	"github.com/vanderheijden86/datefacet/pkg/palette"
	"github.com/vanderheijden86/datefacet/pkg/search"
)

// ValuePlaceholder is replaced by the typed value in AddItemText.
const ValuePlaceholder = "${value}"

// Options holds the tag control's copy strings and behaviour. The copy
// strings come from the input element's data attributes.
type Options struct {
	AddItemText    string `yaml:"add_item_text"`
	LoadingText    string `yaml:"loading"`
	NoResultsText  string `yaml:"no_results"`
	NoChoicesText  string `yaml:"no_choices"`
	ItemSelectText string `yaml:"item_select"`
	UniqueItemText string `yaml:"unique_item_text"`
	FetchURL       string `yaml:"fetch_url"`
	QueryParam     string `yaml:"query_param"`
	Delimiter      string `yaml:"delimiter"`
	MaxItems       int    `yaml:"max_items"`
}

// DefaultOptions returns empty copy strings, a "," delimiter, the "q" query
// parameter and room for one item per palette colour.
func DefaultOptions() Options {
	return Options{
		QueryParam: search.DefaultQueryParam,
		Delimiter:  ",",
		MaxItems:   len(palette.Tableau10),
	}
}

// Data attribute names read from the input element, without the "data-"
// prefix.
const (
	AttrAddItemText    = "additemtext"
	AttrLoading        = "loading"
	AttrNoResults      = "noresults"
	AttrNoChoices      = "nochoices"
	AttrItemSelect     = "itemselect"
	AttrUniqueItemText = "uniqueitemtext"
	AttrFetchURL       = "fetchurl"
	AttrQueryParam     = "queryparam"
	AttrMaxItems       = "maxitems"
)

// OptionsFromAttrs builds Options from element attributes. Keys may carry
// the "data-" prefix; missing attributes keep their defaults.
func OptionsFromAttrs(attrs map[string]string) Options {
	o := DefaultOptions()
	get := func(name string) (string, bool) {
		if v, ok := attrs["data-"+name]; ok {
			return v, true
		}
		v, ok := attrs[name]
		return v, ok
	}
	set := func(name string, dst *string) {
		if v, ok := get(name); ok {
			*dst = v
		}
	}
	set(AttrAddItemText, &o.AddItemText)
	set(AttrLoading, &o.LoadingText)
	set(AttrNoResults, &o.NoResultsText)
	set(AttrNoChoices, &o.NoChoicesText)
	set(AttrItemSelect, &o.ItemSelectText)
	set(AttrUniqueItemText, &o.UniqueItemText)
	set(AttrFetchURL, &o.FetchURL)
	if v, ok := get(AttrQueryParam); ok && v != "" {
		o.QueryParam = v
	}
	if v, ok := get(AttrMaxItems); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n < o.MaxItems {
			o.MaxItems = n
		}
	}
	return o
}

// Attrs is the inverse of OptionsFromAttrs, with "data-" prefixes.
func (o Options) Attrs() map[string]string {
	return map[string]string{
		"data-" + AttrAddItemText:    o.AddItemText,
		"data-" + AttrLoading:        o.LoadingText,
		"data-" + AttrNoResults:      o.NoResultsText,
		"data-" + AttrNoChoices:      o.NoChoicesText,
		"data-" + AttrItemSelect:     o.ItemSelectText,
		"data-" + AttrUniqueItemText: o.UniqueItemText,
		"data-" + AttrFetchURL:       o.FetchURL,
		"data-" + AttrQueryParam:     o.QueryParam,
	}
}

// AddItem renders the add-item prompt for value.
func (o Options) AddItem(value string) string {
	return strings.Replace(o.AddItemText, ValuePlaceholder, value, 1)
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Delimiter == "" {
		o.Delimiter = def.Delimiter
	}
	if o.MaxItems <= 0 {
		o.MaxItems = def.MaxItems
	}
	if o.QueryParam == "" {
		o.QueryParam = def.QueryParam
	}
	return o
}
