package template

import (
	"strconv"
	"strings"
)

// Format writes elements back as template source. Parsing the output yields
// the same tree shape; insignificant whitespace is not preserved.
func Format(elems []Element) string {
	var b strings.Builder
	formatElements(&b, elems)
	return b.String()
}

func formatElements(b *strings.Builder, elems []Element) {
	for _, el := range elems {
		switch n := el.(type) {
		case *Tag:
			b.WriteString("<")
			b.WriteString(n.Name)
			for _, a := range n.Attrs {
				b.WriteString(" ")
				formatAttr(b, a)
			}
			if len(n.Children) == 0 {
				b.WriteString("/>")
				continue
			}
			b.WriteString(">")
			formatElements(b, n.Children)
			b.WriteString("</" + n.Name + ">")
		case *For:
			b.WriteString("{for " + n.Pattern.Text + " in " + n.Iterable.Src + "}")
			formatElements(b, n.Children)
			b.WriteString("{/for}")
		case *If:
			for i, br := range n.Branches {
				switch {
				case i == 0:
					b.WriteString("{if " + br.Cond.Src + "}")
				case br.IsElse() && i == len(n.Branches)-1:
					b.WriteString("{else}")
				default:
					b.WriteString("{else if " + br.Cond.Src + "}")
				}
				formatElements(b, br.Children)
			}
			b.WriteString("{/if}")
		case *Interpolation:
			switch n.Kind {
			case InterpLiteral:
				b.WriteString("{" + strconv.Quote(n.Value) + "}")
			default:
				b.WriteString("{" + n.Value + "}")
			}
		case *Text:
			b.WriteString(n.Value)
		case *Comment:
			b.WriteString("<!--" + n.Value + "-->")
		}
	}
}

func formatAttr(b *strings.Builder, a Attribute) {
	b.WriteString(a.FullName())
	switch a.Kind {
	case AttrLiteral:
		b.WriteString("=" + strconv.Quote(a.Value))
	default:
		b.WriteString("={" + a.Value + "}")
	}
}
