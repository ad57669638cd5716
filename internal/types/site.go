package types

import "fmt"

// SiteType is a coarse category of web site driving rule selection.
type SiteType string

const (
	SiteNews         SiteType = "news"
	SiteBlog         SiteType = "blog"
	SiteEcommerce    SiteType = "ecommerce"
	SiteVideo        SiteType = "video"
	SiteEncyclopedia SiteType = "encyclopedia"
	SiteGov          SiteType = "gov"
	SiteSocial       SiteType = "social"
	SiteGeneral      SiteType = "general"
)

// SiteTypes lists every known site type.
var SiteTypes = []SiteType{
	SiteNews, SiteBlog, SiteEcommerce, SiteVideo,
	SiteEncyclopedia, SiteGov, SiteSocial, SiteGeneral,
}

// ParseSiteType validates s against the known site types.
func ParseSiteType(s string) (SiteType, error) {
	for _, st := range SiteTypes {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown site type %q", s)
}
