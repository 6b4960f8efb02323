package model

import "encoding/xml"

// PackageMetadata is the <metadata> block of content.opf. The dc prefix is declared on <package>.
type PackageMetadata struct {
	XMLName xml.Name `xml:"metadata"`

	Titles      []DCTitle      `xml:"dc:title"`
	Identifiers []DCIdentifier `xml:"dc:identifier"`
	Languages   []DCLanguage   `xml:"dc:language"`
	Creators    []DCCreator    `xml:"dc:creator"`

	Metas []PackageMeta `xml:"meta"`
}

func (d *PackageMetadata) Marshal() (string, error) {
	return marshal(d)
}

type DCTitle struct {
	Value string `xml:",chardata"`
	ID    string `xml:"id,attr,omitempty"`
}

type DCIdentifier struct {
	Value string `xml:",chardata"`
	ID    string `xml:"id,attr,omitempty"`
}

type DCLanguage struct {
	Value string `xml:",chardata"`
}

type DCCreator struct {
	Value string `xml:",chardata"`
	ID    string `xml:"id,attr,omitempty"`
}

// PackageMeta covers both the EPUB3 property form and the legacy name/content form.
type PackageMeta struct {
	Name     string `xml:"name,attr,omitempty"`
	Content  string `xml:"content,attr,omitempty"`
	Property string `xml:"property,attr,omitempty"`
	Refines  string `xml:"refines,attr,omitempty"`
	Value    string `xml:",chardata"`
}

type Manifest struct {
	XMLName xml.Name       `xml:"manifest"`
	Items   []ManifestItem `xml:"item"`
}

func (m *Manifest) Marshal() (string, error) {
	return marshal(m)
}

type ManifestItem struct {
	ID         string `xml:"id,attr"`
	Link       string `xml:"href,attr"`
	Media      string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr,omitempty"`
}

type Spine struct {
	XMLName xml.Name    `xml:"spine"`
	Toc     string      `xml:"toc,attr,omitempty"`
	Items   []SpineItem `xml:"itemref"`
}

func (s *Spine) Marshal() (string, error) {
	return marshal(s)
}

type SpineItem struct {
	IDref string `xml:"idref,attr"`
}

func marshal(v any) (string, error) {
	xmlBytes, err := xml.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(xmlBytes), nil
}
