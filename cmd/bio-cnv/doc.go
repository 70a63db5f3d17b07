// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// bio-cnv infers copy-number variation from binned read depth of targeted
// sequencing.  Input and output tables are tab-separated with a header row
// (chromosome, start, end, gene, then value columns); see package cnvio.
//
// A typical run:
//
//	bio-cnv reference -out ref.cnn normal1.targetcoverage.cnn,normal1.antitargetcoverage.cnn ...
//	bio-cnv fix -reference ref.cnn -out tumor.cnr tumor.targetcoverage.cnn tumor.antitargetcoverage.cnn
//	bio-cnv segment -out tumor.cns tumor.cnr
//	bio-cnv segmetrics -out tumor.cns tumor.cnr tumor.cns
//	bio-cnv call -filter ci -bins tumor.cnr -out tumor.call.cns tumor.cns
//
// Gene-level reports read the same tables:
//
//	bio-cnv breaks -out tumor.breaks.tsv tumor.cnr tumor.cns
//	bio-cnv gainloss -segments tumor.cns -out tumor.genes.cnr tumor.cnr
//
// Without normal samples, "bio-cnv reference -flat" builds a reference from the
// bin layout alone.
//
// The call subcommand also reads options from a YAML file given with -config:
//
//	method: clonal
//	purity: 0.7
//	ploidy: 2
//	male_reference: false
//	sample_sex: female
//	filters: [ampdel, cn]
//
// Flags given on the command line take precedence over the file.
package main
