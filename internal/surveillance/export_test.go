package surveillance

// ResolvedTimeoutHours returns the time-out window selected by o.
func (o Options) ResolvedTimeoutHours() int {
	return o.resolve().timeoutHours
}

// MatchesMDRO reports whether pathogen matches the MDRO keywords selected by o.
func (o Options) MatchesMDRO(pathogen string) bool {
	return o.resolve().mdro.matchedBy(pathogen)
}

// MatchesEBP reports whether protocol matches the EBP keywords selected by o.
func (o Options) MatchesEBP(protocol string) bool {
	return o.resolve().ebp.matchedBy(protocol)
}
