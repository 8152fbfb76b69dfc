// Package scrape extracts structured data from the site's HTML pages.
//
// The site is a Joomla CMS and its markup is only semi-regular, so every
// extractor here is anchored on the most stable landmarks available:
//
//   - index page: navigation anchors with class "item"; entries nested in a
//     list with class "l2" belong to the preceding top-level subject
//   - subject page: the selected <option class="level0"> carries the
//     category ID used by the item-list filter
//   - item-list page: lesson anchors live inside the result <tbody>
//   - lesson page: the first image and anchor inside div.itemFullText, the
//     author behind an Autoría/Autores/Autor marker, and the first anchor
//     whose href contains ".zip"
//
// Design decision: We use golang.org/x/net/html rather than regexp because
// it correctly handles the malformed HTML that Joomla templates produce,
// and the DOM walk keeps each extractor anchored to structure instead of
// byte offsets.
package scrape
