/*
Command cosmo monitors the wavelength alignment of the COS spectrograph on
HST using the lamp flash measurements recorded with every exposure.

Contents

  Program overview
  Command line usage
  Configuration
  File formats
  Algorithm outline


Program overview

Every COS science exposure taken with the wavecal lamp carries one or more
lamp flashes.  The calibration pipeline measures, for each flash and each
detector segment, how far the lamp spectrum sits from its reference
position along the dispersion (SHIFT1) and across it (SHIFT2).  These
measurements are written to the lampflash product of the exposure.
Target acquisitions record a comparable position in their support file.

cosmo gathers these measurements from the exposure corpus into a shift
table, corrects dispersion shifts for the FP-POS setting using the LAMPTAB
reference table, fits the trend of each configuration over time, and
flags measurements outside the search range of the grating.  Separately it
scans lampflash products for drift of the lamp position within a single
exposure.


Command line usage

  cosmo [-c cosmo.yaml] [command]

Without a command all steps run in order: collect, trends, diff, drift
and flag.  The commands are

  collect   extract shifts from the corpus into the shift database
  trends    fit per-day median trends; write trends.txt and all_shifts.fits
  diff      write the FUVA-FUVB difference report shift_data.txt
  drift     scan lampflash products; append to drift.txt
  flag      flag drift.txt rows and shift table records; write anomalies.txt
  import    load a legacy all_shifts.fits into the shift database

Interrupting the program stops it scheduling further files.


Configuration

The configuration file is YAML.  Keys not given keep their defaults, and
unknown keys are an error.

  paths:
    corpus_root: /smov/cos/Data
    lref_dir: /grp/hst/cdbs/lref      # overridden by $lref
    monitor_dir: /grp/hst/cos/Monitors/Shifts
    database: shifts.db               # relative to monitor_dir
  walk:
    exclude: [Quality, Fasttrack, targets, podfiles, gzip,
              experimental, Anomalies, otfrdata]
    leaf_depth: 3
    dedup: exposure                   # basename, path or exposure
    workers: 0                        # 0 uses all processors
  processing:
    frame_size: 1023
    drift_tolerance: 2
    positive_only: [MIRRORA, MIRRORB]
    bands:
      - {opt_elem: G185M, epoch: 56500, before: {lo: -58, hi: 58},
         after: {lo: -78, hi: 38}}
      ...
  logging:
    level: info
    development: false

Directories whose path below corpus_root contains an excluded name are
not entered.  Products are read only from directories exactly leaf_depth
levels below the root.  With dedup "basename" a file name seen once is
never read again anywhere in the corpus; "exposure" skips a product whose
rootname and exposure start were already seen; "path" skips nothing.


File formats

drift.txt has one line per file and segment with at least two flashes:

  <path> <segment> <spread> <exptime>

Numbers are written in the shortest form that reads back exactly, with a
trailing ".0" on whole numbers.

shift_data.txt has one line per FUV dataset with both segments:

  <mjd> <opt_elem> <cenwave> <fppos> <FUVA shift> <FUVB shift>

anomalies.txt has one line per flagged measurement:

  <drift|shift> <file or dataset> <segment or opt_elem> <mjd> <value> <lo> <hi>

all_shifts.fits is a binary table with columns mjd, date, dataset,
filename, proposid, detector, opt_elem, cenwave, segment, fppos, lamptab,
flash, x_shift, y_shift and found.  Missing shifts are NaN.


Algorithm outline

1.  Lampflash rows come in pairs, so row i belongs to flash i/2+1.  The
dispersion shift is SHIFT_DISP less the LAMPTAB FP_PIXEL_SHIFT for the
segment, grating, cenwave and FPOFFSET = FPPOS-3.  A LAMPTAB without an
FPOFFSET column defines no correction.  When the table has no matching
row the shift is left uncorrected and a warning is logged.  Both shifts
are rounded to five decimals.

2.  An acquisition gives one record.  From its support file, with frame
size 1023, x = 1023-LQTAYCOR and y = 1023-LQTAXCOR.  A non-positive
LQTAYCOR means the target was not found and both shifts are missing.

3.  Trends are computed over three groupings: grating and segment,
grating and cenwave, and grating alone.  Shifts of each group are reduced
to a median per MJD day and a line is fitted to the daily medians by
least squares.  The slope error is the standard error from the residuals.
Mirror shifts that are not positive are left out.

4.  Drift is the range of SHIFT_XDISP over the flashes of one segment in
one exposure.  NUV exposures and exposures with a single flash are not
scanned.

5.  Search ranges are +/-285 pixels for the FUV gratings and +/-58 for the
NUV gratings.  The ranges of G185M and G225M moved at MJD 56500, and that
of G230L at MJD 55535.

-------------
Public domain.
*/
package main
