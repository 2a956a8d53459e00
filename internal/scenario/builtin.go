// internal/scenario/builtin.go
package scenario

// Scenario names with a built-in expected serialization.
const (
	NamespacesScenario            = "serializes namespaces properly"
	MultipleTopNamespacesScenario = "serializes multiple top namespaces properly"
)

// namespacesDocument is what saving source_converted.xml must produce.
const namespacesDocument =
	`<TEI xmlns="http://www.tei-c.org/ns/1.0"><teiHeader><fileDesc>` +
	`<titleStmt><title>abcd</title></titleStmt><publicationStmt><p/>` +
	`</publicationStmt><sourceDesc><p MOO="a" moo="b"/></sourceDesc>` +
	`</fileDesc></teiHeader><text><body><p><hi/>Blah blah <term>blah</term>` +
	` blah.</p><p><term>blah</term></p><p><ref/></p><p><hi>a</hi><hi>b</hi>` +
	`c</p><p>abcdefghij</p><p>` +
	`aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa<hi>` +
	`aaaaaaaa aaaaaaaaaaa</hi>abcd</p><p>` +
	`abcd abcd abcd abcd abcd abcd abcd abcd abcd abcd abcd abcd abcd abcd ` +
	`abcd abcd abcd abcd abcd abcd abcd abcd abcd abcd abcd abcd abcd abcd ` +
	`abcd abcd abcd abcd abcd abcd abcd abcd abcd abcd abcd abcd abcd abcd ` +
	`abcd abcd abcd abcd abcd abcd abcd abcd abcd abcd abcd abcd abcd abcd ` +
	`abcd abcd abcd abcd</p><p rend="rend_value" style="style_value">Blah</p>` +
	`<p rend="abc">Blah</p><p part="">Blah</p><div sample=""/><p rend="foo"/>` +
	`<p rend="wrap">Something</p><p><monogr>` +
	`This paragraph and its content are designed to test how error markers ` +
	`are shown for inline elements that end up spanning multiple lines. This ` +
	`paragraph and its content are designed to test how error markers are ` +
	`shown for inline elements that end up spanning multiple lines. This ` +
	`paragraph and its content are designed to test how error markers are ` +
	`shown for inline elements that end up spanning multiple lines.</monogr>` +
	`</p><p n="">P</p><div type="a" subtype="b" rend="foo" rendition="bar"/>` +
	`<div xxx="x">This div has a bad attribute.</div><list rend="list"><item>` +
	`a</item><item>b</item><item>c</item></list><?pi fnord?>` +
	`<!-- a comment --><?pi something?><!-- comment content --></body></text>` +
	`</TEI>`

// multipleTopNamespacesDocument is what saving
// multiple_top_namespaces_converted.xml must produce.
const multipleTopNamespacesDocument =
	`<TEI xmlns="http://www.tei-c.org/ns/1.0" ` +
	`xmlns:math="http://www.w3.org/1998/Math/MathML"><teiHeader><fileDesc>` +
	`<titleStmt><title/></titleStmt><publicationStmt><p/></publicationStmt>` +
	`<sourceDesc><p/></sourceDesc></fileDesc></teiHeader><text><body><p><hi/>` +
	`<formula><math:math/></formula></p></body></text></TEI>`

var builtinExpected = map[string]string{
	NamespacesScenario:            namespacesDocument,
	MultipleTopNamespacesScenario: multipleTopNamespacesDocument,
}
