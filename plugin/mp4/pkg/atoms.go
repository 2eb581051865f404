package mp4

import "github.com/simsong/bulk-extractor-sub001/plugin/mp4/pkg/box"

// atomNames lists the ISO-BMFF, QuickTime, 3GPP and JPEG 2000 box types the
// partial moov walker will descend through. Anything else stops the walk.
var atomNames = [...]string{
	"ainf", "avcC", "avc1", "bpcc", "btrt", "buff", "bxml", "ccid", "cdef", "clip",
	"cmap", "co64", "colr", "cprt", "crhd", "cslg", "ctab", "ctts", "cvru", "d263",
	"damr", "dinf", "dref", "edts", "elst", "esds", "fdel", "feci", "fecr", "fiin",
	"fire", "fpar", "free", "frma", "ftyp", "gitn", "grpi", "hdlr", "hmhd", "hpix",
	"icnu", "idat", "ihdr", "iinf", "iloc", "imap", "imif", "infe", "infu", "iods",
	"ipmc", "ipro", "iref", "jP  ", "jp2c", "jp2h", "jp2i", "jpeg", "kmat", "load",
	"lrcu", "m7hd", "matt", "mdat", "mdhd", "mdia", "mdri", "meco", "mehd", "mere",
	"meta", "mfhd", "mfra", "mfro", "minf", "mjhd", "moof", "moov", "mp4a", "mp4v",
	"mvcg", "mvci", "mvex", "mvhd", "mvra", "nmhd", "ochd", "odaf", "odda", "odhd",
	"odhe", "odrb", "odrm", "odtt", "ohdr", "padb", "paen", "pclr", "pdin", "pitm",
	"pnot", "prft", "res ", "resc", "resd", "rinf", "s263", "saio", "saiz", "samr",
	"sbgp", "schi", "schm", "sdep", "sdhd", "sdtp", "sdvp", "segr", "senc", "sgpd",
	"sidx", "sinf", "skip", "smhd", "srmb", "srmc", "srpp", "ssix", "stbl", "stco",
	"stdp", "sthd", "strd", "stri", "stsc", "stsd", "stsg", "stsh", "stss", "stsz",
	"stts", "styp", "stz2", "subs", "swtc", "tfad", "tfdt", "tfhd", "tfma", "tfra",
	"tibr", "tiri", "tkhd", "traf", "trak", "tref", "trex", "trgr", "trun", "tsel",
	"udta", "uinf", "UITS", "ulst", "url ", "urn ", "uuid", "vmhd", "vwdi", "xml ",
}

var knownAtoms = func() map[[4]byte]struct{} {
	m := make(map[[4]byte]struct{}, len(atomNames))
	for _, name := range atomNames {
		m[[4]byte([]byte(name))] = struct{}{}
	}
	return m
}()

// KnownAtom reports whether typ is in the recognized atom table.
func KnownAtom(typ [4]byte) bool {
	_, ok := knownAtoms[typ]
	return ok
}

// containers are the boxes whose content is only child boxes.
var containers = map[[4]byte]bool{
	box.TypeMOOV: true,
	box.TypeTRAK: true,
	box.TypeMDIA: true,
	box.TypeMINF: true,
	box.TypeDINF: true,
	box.TypeSTBL: true,
	f("edts"):    true,
	f("udta"):    true,
	f("mvex"):    true,
}

func f(s string) [4]byte {
	return [4]byte([]byte(s))
}
