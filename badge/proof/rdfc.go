package proof

import (
	"fmt"

	"github.com/piprate/json-gold/ld"
)

// defaultDocumentLoader is a shared caching loader so remote contexts are
// fetched at most once per process.
var defaultDocumentLoader ld.DocumentLoader

func init() {
	defaultDocumentLoader = ld.NewCachingDocumentLoader(ld.NewDefaultDocumentLoader(nil))
}

// canonicalizeRDF normalizes a JSON-LD document into sorted N-Quads. This is
// the canonicalization path of the eddsa-rdfc-2022 suite; the JCS suite never
// touches it.
func canonicalizeRDF(doc map[string]interface{}) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("failed to canonicalize document: document is nil")
	}

	jsonldOptions := ld.NewJsonLdOptions("")
	jsonldOptions.ProcessingMode = ld.JsonLd_1_1
	jsonldOptions.Format = "application/n-quads"
	jsonldOptions.Algorithm = ld.AlgorithmURDNA2015
	jsonldOptions.ProduceGeneralizedRdf = true
	jsonldOptions.DocumentLoader = defaultDocumentLoader

	processor := ld.NewJsonLdProcessor()

	view, err := processor.Normalize(doc, jsonldOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize JSON-LD document: %w", err)
	}

	result, ok := view.(string)
	if !ok {
		return nil, fmt.Errorf("failed to normalize JSON-LD document: invalid view")
	}

	return []byte(result), nil
}
