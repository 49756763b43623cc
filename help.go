package main

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const detailedHelp = `imgquant - reduce images to an indexed palette for retro hardware

Usage:
  imgquant [options] <input>...

The palette is learned with an octree: every pixel is added to an 8 level
tree over the RGB cube and the lightest deepest subtrees are folded into
their parents until at most --colors leaves remain. The mean color of each
leaf becomes a palette entry. Up to 16 colors produce a 4 bpp image, more
an 8 bpp one.

With --dither fs the quantization error of every pixel is spread to its
unvisited neighbours (Floyd-Steinberg, 7/16 right, 3/16 below left, 5/16
below and the rest below right).

--shade-levels N adds N-1 darker copies of every learned color to the tree
with a small weight, so the palette also serves hardware that scales colors
by a brightness register. --shade-lut writes, for each palette entry, the
palette index of every brightness level from black to full.

--tiles WxH rearranges the result into a strip of WxH tiles; --dedup keeps
only the first of identical tiles and --tilemap writes the tile index of
every cell as 16-bit big-endian words.

Settings come from built-in defaults, then the --config YAML preset, then
IMGQUANT_COLORS, IMGQUANT_DITHER, IMGQUANT_SHADE_LEVELS and IMGQUANT_DEDUP
(or their _FILE variants, also read from .env), then the command line.

Inputs may be PNG, JPEG, GIF, BMP, QOI or PCX.

`
