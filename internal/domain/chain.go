package domain

// Chain identifies a supported network.
type Chain string

// Supported chains
const (
	ChainEthereum Chain = "ethereum"
	ChainBase     Chain = "base"
	ChainArbitrum Chain = "arbitrum"
	ChainOptimism Chain = "optimism"
	ChainPolygon  Chain = "polygon"
	ChainSolana   Chain = "solana"
)

// EVMChains lists the chains served by the unified explorer endpoint,
// in the stable order used by ingestion.
func EVMChains() []Chain {
	return []Chain{ChainEthereum, ChainBase, ChainArbitrum, ChainOptimism, ChainPolygon}
}

// AllChains lists every supported chain in stable order.
func AllChains() []Chain {
	return append(EVMChains(), ChainSolana)
}

// IsEVM reports whether c is served by the EVM explorer client.
func (c Chain) IsEVM() bool {
	switch c {
	case ChainEthereum, ChainBase, ChainArbitrum, ChainOptimism, ChainPolygon:
		return true
	}
	return false
}

// Valid reports whether c is a recognized chain.
func (c Chain) Valid() bool {
	return c.IsEVM() || c == ChainSolana
}
